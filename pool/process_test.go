// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package pool

import (
	"context"
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

var _ = Describe("worker processes", func() {

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
			Expect(Tasks()).To(BeUniformlyNamespaced())
		})
	})

	It("fails to launch non-existing workers", func() {
		Expect((&ExecLauncher{Command: []string{"/nonexisting/procdns-worker"}}).Launch(nil, true)).
			Error().To(HaveOccurred())
		Expect((&ExecLauncher{Command: []string{"/nonexisting/procdns-worker"}}).Launch(nil, false)).
			Error().To(HaveOccurred())
	})

	It("fails to launch workers in non-existing network namespaces", func() {
		Expect((&ExecLauncher{Command: []string{workerPath}, Netns: "/nonexisting/net"}).Launch(nil, true)).
			Error().To(HaveOccurred())
	})

	DescribeTable("resolves localhost using worker processes",
		NodeTimeout(30*time.Second),
		func(ctx context.Context, newTransport func(Launcher) Transport) {
			l := &ExecLauncher{Command: []string{workerPath}}
			p := startPool(2, newTransport(l))
			Eventually(p.Stats).WithTimeout(10 * time.Second).
				Should(Equal(Stats{Processes: 2, Available: 2}))
			for i := 0; i < 4; i++ {
				msg := Successful(p.Query(ctx, "", types.NewQuery("localhost", dns.TypeA)))
				Expect(msg.Question).To(HaveLen(1))
				Expect(msg.Answer).NotTo(BeEmpty())
				Expect(msg.Answer[len(msg.Answer)-1]).To(BeAssignableToTypeOf(&dns.A{}))
			}
			p.Stop()
			Expect(p.Stats()).To(BeZero())
		},
		Entry("over pipes", func(l Launcher) Transport { return NewPipeTransport(l) }),
		Entry("over sockets", func(l Launcher) Transport { return NewSocketTransport(l) }),
	)

	It("replaces killed worker processes", NodeTimeout(30*time.Second), func(ctx context.Context) {
		p := startPool(1, NewPipeTransport(&ExecLauncher{Command: []string{workerPath}}))
		Eventually(p.Stats).WithTimeout(10 * time.Second).
			Should(Equal(Stats{Processes: 1, Available: 1}))
		var first ID
		Expect(p.inspect(func(r *reactor) {
			for proc := range r.procs {
				first = proc
			}
			r.transport.Kill(first)
		})).To(BeTrue())
		Eventually(func() bool {
			var replaced bool
			p.inspect(func(r *reactor) {
				_, alive := r.procs[first]
				replaced = !alive && len(r.procs) == 1 && len(r.idle) == 1
			})
			return replaced
		}).WithTimeout(10 * time.Second).Should(BeTrue())
		Expect(Successful(p.Query(ctx, "", types.NewQuery("localhost", dns.TypeA))).Answer).NotTo(BeEmpty())
	})

	It("replaces the worker after each SOA query", NodeTimeout(30*time.Second), func(ctx context.Context) {
		p := startPool(1, NewPipeTransport(&ExecLauncher{Command: []string{workerPath}}),
			WithRespawnInterval(10*time.Millisecond))
		Eventually(p.Stats).WithTimeout(10 * time.Second).
			Should(Equal(Stats{Processes: 1, Available: 1}))
		var werr *resolution.WorkerError
		Expect(p.Query(ctx, "", types.NewQuery("localhost", dns.TypeSOA))).Error().
			To(BeAssignableToTypeOf(werr))
		Expect(p.Query(ctx, "", types.NewQuery("localhost", dns.TypeSOA))).Error().
			To(MatchError(ContainSubstring("unsupported query type SOA")))
		Eventually(p.Stats).WithTimeout(10 * time.Second).
			Should(Equal(Stats{Processes: 1, Available: 1}))
		var third bool
		Expect(p.inspect(func(r *reactor) {
			_, third = r.procs[3]
		})).To(BeTrue())
		Expect(third).To(BeTrue())
	})

})
