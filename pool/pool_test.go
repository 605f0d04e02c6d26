// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package pool

import (
	"context"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/siemens/procdns/resolution"
	"github.com/siemens/procdns/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/namspill"
	. "github.com/thediveo/success"
)

// startPool returns a started pool of the specified size, stopping it when
// the current spec is done.
func startPool(size int, t Transport, options ...PoolOption) *Pool {
	GinkgoHelper()
	p := Successful(New(size, t, options...))
	Expect(p.Start()).To(Succeed())
	DeferCleanup(p.Stop)
	return p
}

// send sends a new request for the specified name and type.
func send(ctx context.Context, p *Pool, name string, qtype uint16) *resolution.Request {
	req := resolution.NewRequest(ctx, types.NewQuery(name, qtype))
	p.Send(req)
	return req
}

// checkBookkeeping checks that busy channels and in-flight requests form a
// bijection, and that busy channels aren't available at the same time.
func checkBookkeeping(p *Pool) {
	GinkgoHelper()
	Expect(p.inspect(func(r *reactor) {
		reqs := map[*resolution.Request]ID{}
		for ch, req := range r.inflight {
			Expect(reqs).NotTo(HaveKey(req), "request in flight on channels %d and %d", reqs[req], ch)
			reqs[req] = ch
			Expect(r.channels).To(HaveKey(ch))
			Expect(r.channels[ch].state).To(Equal(types.Busy))
			Expect(r.idle).NotTo(ContainElement(ch))
		}
		for _, ch := range r.idle {
			Expect(r.channels[ch].state).To(Equal(types.Available))
		}
		for ch, c := range r.channels {
			if c.state == types.Authenticating {
				continue
			}
			Expect(r.procs[c.proc].IsUsable()).To(BeTrue(), "process of channel %d not usable", ch)
		}
	})).To(BeTrue())
}

var _ = Describe("worker pool", func() {

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
			Expect(Tasks()).To(BeUniformlyNamespaced())
		})
	})

	It("rejects invalid sizes", func() {
		Expect(New(0, NewPipeTransport(newGoLauncher(resolving(stubResolver{}))))).Error().
			To(MatchError(ErrInvalidSize))
	})

	It("starts, stops and restarts", NodeTimeout(10*time.Second), func(ctx context.Context) {
		p := Successful(New(2, NewPipeTransport(newGoLauncher(resolving(stubResolver{})))))
		Expect(p.Size()).To(Equal(2))
		Expect(p.Running()).To(BeFalse())
		req := send(ctx, p, "localhost", dns.TypeA)
		Expect(req.Future().Done()).To(BeClosed())
		Expect(req.Future().Result()).Error().To(MatchError(ErrNotRunning))

		Expect(p.Start()).To(Succeed())
		DeferCleanup(p.Stop)
		Expect(p.Start()).To(MatchError(ErrAlreadyRunning))
		Expect(p.Running()).To(BeTrue())
		Eventually(p.Stats).Should(Equal(Stats{Processes: 2, Available: 2}))
		Expect(Successful(p.Query(ctx, "", types.NewQuery("localhost", dns.TypeA))).Answer).To(HaveLen(1))

		p.Stop()
		Expect(p.Running()).To(BeFalse())
		Expect(p.Stats()).To(BeZero())
		Expect(p.Stop).NotTo(Panic())

		Expect(p.Start()).To(Succeed())
		Expect(Successful(p.Query(ctx, "", types.NewQuery("localhost", dns.TypeA))).Answer).To(HaveLen(1))
	})

	It("rejects unknown query types right away", func(ctx context.Context) {
		p := startPool(1, NewPipeTransport(newGoLauncher(resolving(stubResolver{}))))
		req := send(ctx, p, "localhost", dns.TypeAAAA)
		Expect(req.Future().Done()).To(BeClosed())
		Expect(req.Future().Result()).Error().To(MatchError(resolution.ErrUnknownQueryType))
		Expect(p.Stats().Queued).To(BeZero())
	})

	It("resolves localhost", NodeTimeout(10*time.Second), func(ctx context.Context) {
		p := startPool(2, NewPipeTransport(newGoLauncher(resolving(stubResolver{}))))
		msg := Successful(p.Query(ctx, "8.8.8.8", types.NewQuery("localhost", dns.TypeA)))
		Expect(msg.Question).To(Equal([]dns.Question{
			{Name: "localhost", Qtype: dns.TypeA, Qclass: dns.ClassINET},
		}))
		Expect(msg.Answer).To(HaveLen(1))
		Expect(msg.Answer[0]).To(BeAssignableToTypeOf(&dns.A{}))
		a := msg.Answer[0].(*dns.A)
		Expect(a.Hdr.Name).To(Equal("localhost"))
		Expect(a.Hdr.Ttl).To(BeEquivalentTo(1))
		Expect(a.A.String()).To(Equal("127.0.0.1"))
	})

	It("passes on canonicalized answers", NodeTimeout(10*time.Second), func(ctx context.Context) {
		p := startPool(1, NewPipeTransport(newGoLauncher(resolving(stubResolver{}))))
		msg := Successful(p.Query(ctx, "", types.NewQuery("www.example", dns.TypeA)))
		Expect(msg.Answer).To(HaveLen(2))
		Expect(msg.Answer[0].(*dns.CNAME).Target).To(Equal("example"))
		Expect(msg.Answer[1].(*dns.A).Hdr.Name).To(Equal("example"))
	})

	It("dispatches each request to exactly one worker", NodeTimeout(10*time.Second), func(ctx context.Context) {
		r := newGateResolver()
		p := startPool(3, NewPipeTransport(newGoLauncher(resolving(r))))
		Eventually(p.Stats).Should(Equal(Stats{Processes: 3, Available: 3}))

		reqs := []*resolution.Request{}
		for i := 0; i < 5; i++ {
			reqs = append(reqs, send(ctx, p, "localhost", dns.TypeA))
		}
		Eventually(p.Stats).Should(Equal(Stats{Processes: 3, Busy: 3, Queued: 2}))
		Eventually(r.Lookups).Should(HaveLen(3))
		checkBookkeeping(p)
		// the first three requests have been dispatched in order.
		Expect(p.inspect(func(r *reactor) {
			Expect(r.queue.At(0)).To(BeIdenticalTo(reqs[3]))
			Expect(r.queue.At(1)).To(BeIdenticalTo(reqs[4]))
		})).To(BeTrue())

		r.Open()
		for _, req := range reqs {
			resp := Successful(req.Future().Wait(ctx))
			Expect(resp.Answers()).To(HaveLen(1))
		}
		Eventually(p.Stats).Should(Equal(Stats{Processes: 3, Available: 3}))
		checkBookkeeping(p)
		Expect(r.Lookups()).To(HaveLen(5))
	})

	It("retries requests of crashed workers", NodeTimeout(10*time.Second), func(ctx context.Context) {
		l := newGoLauncher(crashing, resolving(stubResolver{}))
		p := startPool(1, NewPipeTransport(l))
		msg := Successful(p.Query(ctx, "", types.NewQuery("localhost", dns.TypeA)))
		Expect(msg.Answer).To(HaveLen(1))
		Expect(l.Launched()).To(Equal(2))
		Eventually(p.Stats).Should(Equal(Stats{Processes: 1, Available: 1}))
	})

	It("gives up after too many retries", NodeTimeout(10*time.Second), func(ctx context.Context) {
		l := newGoLauncher(crashing)
		p := startPool(1, NewPipeTransport(l),
			WithMaxRetries(2), WithRespawnInterval(time.Millisecond))
		Expect(p.Query(ctx, "", types.NewQuery("localhost", dns.TypeA))).Error().
			To(MatchError(ErrRetriesExhausted))
		Expect(l.Launched()).To(BeNumerically(">=", 3))
	})

	It("rejects requests with the reason reported by a worker, replacing the worker", NodeTimeout(10*time.Second), func(ctx context.Context) {
		l := newGoLauncher(resolving(stubResolver{}))
		p := startPool(1, NewPipeTransport(l))
		_, err := p.Query(ctx, "", types.NewQuery("fail.example", dns.TypeA))
		var werr *resolution.WorkerError
		Expect(err).To(BeAssignableToTypeOf(werr))
		Expect(err.(*resolution.WorkerError).Reason).To(Equal("SERVFAIL"))
		Eventually(l.Launched).Should(Equal(2))
		Eventually(p.Stats).Should(Equal(Stats{Processes: 1, Available: 1}))
		Expect(Successful(p.Query(ctx, "", types.NewQuery("localhost", dns.TypeA))).Answer).To(HaveLen(1))
	})

	It("rejects requests answered with malformed messages", NodeTimeout(10*time.Second), func(ctx context.Context) {
		l := newGoLauncher(replying(`{"foo":"bar"}`+"\x00"), resolving(stubResolver{}))
		p := startPool(1, NewPipeTransport(l))
		Expect(p.Query(ctx, "", types.NewQuery("localhost", dns.TypeA))).Error().
			To(MatchError(resolution.ErrNoDetail))
		Eventually(l.Launched).Should(Equal(2))
		Expect(Successful(p.Query(ctx, "", types.NewQuery("localhost", dns.TypeA))).Answer).To(HaveLen(1))
	})

	It("replaces workers sending oversized frames", NodeTimeout(10*time.Second), func(ctx context.Context) {
		l := newGoLauncher(replying(strings.Repeat("x", 9000)), resolving(stubResolver{}))
		p := startPool(1, NewPipeTransport(l))
		Expect(Successful(p.Query(ctx, "", types.NewQuery("localhost", dns.TypeA))).Answer).To(HaveLen(1))
		Expect(l.Launched()).To(Equal(2))
	})

	It("replaces workers sending unsolicited messages", NodeTimeout(10*time.Second), func(ctx context.Context) {
		l := newGoLauncher(chatty, resolving(stubResolver{}))
		p := startPool(1, NewPipeTransport(l))
		Eventually(l.Launched).Should(Equal(2))
		Eventually(p.Stats).Should(Equal(Stats{Processes: 1, Available: 1}))
		Expect(Successful(p.Query(ctx, "", types.NewQuery("localhost", dns.TypeA))).Answer).To(HaveLen(1))
	})

	It("discards abandoned requests", NodeTimeout(10*time.Second), func(ctx context.Context) {
		r := newGateResolver()
		p := startPool(1, NewPipeTransport(newGoLauncher(resolving(r))))
		first := send(ctx, p, "localhost", dns.TypeA)
		Eventually(r.Lookups).Should(HaveLen(1))

		abandonedctx, cancel := context.WithCancel(ctx)
		abandoned := send(abandonedctx, p, "localhost", dns.TypeA)
		Eventually(p.Stats).Should(Equal(Stats{Processes: 1, Busy: 1, Queued: 1}))
		cancel()

		r.Open()
		Expect(first.Future().Wait(ctx)).Error().NotTo(HaveOccurred())
		Expect(abandoned.Future().Wait(ctx)).Error().To(MatchError(context.Canceled))
		Expect(r.Lookups()).To(HaveLen(1))
	})

	It("rejects pending requests when stopped", NodeTimeout(10*time.Second), func(ctx context.Context) {
		r := newGateResolver()
		p := startPool(1, NewPipeTransport(newGoLauncher(resolving(r))))
		inflight := send(ctx, p, "localhost", dns.TypeA)
		queued := send(ctx, p, "localhost", dns.TypeA)
		Eventually(p.Stats).Should(Equal(Stats{Processes: 1, Busy: 1, Queued: 1}))
		p.Stop()
		Expect(inflight.Future().Wait(ctx)).Error().To(MatchError(ErrStopped))
		Expect(queued.Future().Wait(ctx)).Error().To(MatchError(ErrStopped))
	})

	It("keeps trying to spawn workers", NodeTimeout(10*time.Second), func(ctx context.Context) {
		l := newGoLauncher(resolving(stubResolver{}))
		l.Fail(true)
		p := startPool(2, NewPipeTransport(l), WithRespawnDelay(50*time.Millisecond))
		req := send(ctx, p, "localhost", dns.TypeA)
		Consistently(p.Stats).WithTimeout(200 * time.Millisecond).
			Should(Equal(Stats{Queued: 1}))
		l.Fail(false)
		Expect(Successful(req.Future().Wait(ctx)).Answers()).To(HaveLen(1))
		Eventually(p.Stats).Should(Equal(Stats{Processes: 2, Available: 2}))
	})

})
