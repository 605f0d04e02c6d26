// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dig

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/siemens/procdns/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
)

// fakeExecutor answers names from a map, with names missing from the map
// failing.
type fakeExecutor struct {
	addrs   map[string]string
	delay   time.Duration
	mu      sync.Mutex
	running int
	peak    int
}

func (e *fakeExecutor) Query(ctx context.Context, nameserver string, q types.Query) (*dns.Msg, error) {
	e.mu.Lock()
	e.running++
	if e.running > e.peak {
		e.peak = e.running
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running--
		e.mu.Unlock()
	}()
	select {
	case <-time.After(e.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	addr, ok := e.addrs[q.Name]
	if !ok {
		return nil, errors.New("no such host")
	}
	msg := &dns.Msg{Question: []dns.Question{q.Question()}}
	msg.Answer = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 1},
		A:   net.ParseIP(addr),
	}}
	return msg, nil
}

func (e *fakeExecutor) Peak() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peak
}

var _ = Describe("digging", func() {

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			// cancelling a dig can take some time for all associated goroutines
			// to finally terminate...
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
		})
	})

	It("digs names and streams the results", NodeTimeout(10*time.Second), func(ctx context.Context) {
		e := &fakeExecutor{addrs: map[string]string{
			"foo.example": "192.0.2.1",
			"bar.example": "192.0.2.2",
		}}
		digger, news := New(2, e)
		go func() {
			digger.Dig(ctx, []string{"foo.example", "bar.example", "baz.example"}, dns.TypeA)
			digger.StopWait()
		}()

		results := map[string]Result{}
		Eventually(func() bool {
			r, ok := <-news
			if ok {
				results[r.Query.Name] = r
			}
			return ok
		}).WithContext(ctx).Should(BeFalse(), "missing signal that digging has finished")
		Expect(results).To(HaveLen(3))
		Expect(results["foo.example"].Err).NotTo(HaveOccurred())
		Expect(results["foo.example"].Msg.Answer).To(HaveLen(1))
		Expect(results["baz.example"].Err).To(MatchError("no such host"))
		Expect(results["baz.example"].Msg).To(BeNil())
	})

	It("limits the number of concurrent lookups", NodeTimeout(10*time.Second), func(ctx context.Context) {
		e := &fakeExecutor{addrs: map[string]string{}, delay: 50 * time.Millisecond}
		digger, news := New(2, e)
		tally := NewTally()
		go func() {
			digger.Dig(ctx, []string{"a", "b", "c", "d", "e", "f"}, dns.TypeA)
			digger.StopWait()
		}()
		Expect(tally.Track(ctx, news)).To(Succeed())
		_, failed := tally.Counts()
		Expect(failed).To(Equal(6))
		Expect(e.Peak()).To(Equal(2))
	})

	It("cancels digging", NodeTimeout(10*time.Second), func(ctx context.Context) {
		ctx, cancel := context.WithCancel(ctx)
		e := &fakeExecutor{addrs: map[string]string{}, delay: time.Hour}
		digger, _ := New(1, e)
		digger.Dig(ctx, []string{"a", "b", "c"}, dns.TypeA)
		cancel()
		// nobody is consuming the news, so this only returns when lookups get
		// cancelled and sending their results is abandoned.
		digger.StopWait()
	})

})

var _ = Describe("tallying", func() {

	result := func(name string, err error, rrs ...dns.RR) Result {
		r := Result{Query: types.NewQuery(name, dns.TypeA), Err: err, Took: time.Millisecond}
		if err == nil {
			r.Msg = &dns.Msg{Answer: rrs}
		}
		return r
	}

	It("keeps the latest outcome per name", func() {
		t := NewTally()
		t.Update(Result{})
		Expect(t.Get()).To(BeEmpty())

		t.Update(result("www.example", errors.New("SERVFAIL")))
		t.Update(result("www.example", nil,
			&dns.CNAME{Hdr: dns.RR_Header{Name: "www.example", Rrtype: dns.TypeCNAME}, Target: "example"},
			&dns.A{Hdr: dns.RR_Header{Name: "example", Rrtype: dns.TypeA}, A: net.ParseIP("192.0.2.1")}))
		t.Update(result("a.example", errors.New("no such host")))

		outcomes := t.Get()
		Expect(outcomes).To(HaveLen(2))
		Expect(outcomes[0]).To(And(
			HaveField("Name", "a.example"),
			HaveField("Err", MatchError("no such host")),
			HaveField("Lookups", 1),
		))
		Expect(outcomes[1]).To(And(
			HaveField("Name", "www.example"),
			HaveField("Err", BeNil()),
			HaveField("Addresses", ConsistOf("192.0.2.1")),
			HaveField("Aliases", ConsistOf("example")),
			HaveField("Lookups", 2),
			HaveField("Took", time.Millisecond),
		))
		ok, failed := t.Counts()
		Expect(ok).To(Equal(1))
		Expect(failed).To(Equal(2))
	})

	It("stops tracking when the context is done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(NewTally().Track(ctx, make(chan Result))).To(MatchError(context.Canceled))
	})

})
