// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolution

import (
	"context"
	"time"

	"github.com/miekg/dns"
	"github.com/siemens/procdns/types"
	"github.com/siemens/procdns/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("requests", func() {

	DescribeTable("projects supported query types",
		func(qtype uint16) {
			req := NewRequest(context.Background(), types.NewQuery("example.org", qtype))
			Expect(Successful(req.Wire())).To(Equal(wire.Request{
				Name: "example.org",
				Type: int(qtype),
			}))
		},
		Entry("A", dns.TypeA),
		Entry("CNAME", dns.TypeCNAME),
		Entry("MX", dns.TypeMX),
		Entry("NS", dns.TypeNS),
		Entry("PTR", dns.TypePTR),
		Entry("SOA", dns.TypeSOA),
		Entry("TXT", dns.TypeTXT),
	)

	It("fails for unknown query types", func() {
		req := NewRequest(context.Background(), types.NewQuery("example.org", dns.TypeAAAA))
		Expect(req.Wire()).Error().To(MatchError(ErrUnknownQueryType))
		Expect(req.Frame()).Error().To(MatchError(ErrUnknownQueryType))
	})

	It("frames requests", func() {
		req := NewRequest(nil, types.NewQuery("localhost", dns.TypeA))
		Expect(string(Successful(req.Frame()))).To(Equal(`{"name":"localhost","type":1}` + "\x00"))
		Expect(req.Abandoned()).To(BeFalse())
	})

	It("settles only once", func() {
		req := NewRequest(context.Background(), types.NewQuery("localhost", dns.TypeA))
		Expect(req.Future().Done()).NotTo(BeClosed())
		Expect(func() { _, _ = req.Future().Result() }).To(Panic())
		resp := NewResponse(nil)
		req.Resolve(resp)
		Expect(req.Future().Done()).To(BeClosed())
		Expect(Successful(req.Future().Result())).To(BeIdenticalTo(resp))
		Expect(func() { req.Reject(ErrNoDetail) }).To(PanicWith(ContainSubstring("settled twice")))
		Expect(func() { req.Resolve(resp) }).To(Panic())
	})

	It("passes rejections to waiters", func() {
		req := NewRequest(context.Background(), types.NewQuery("localhost", dns.TypeA))
		go req.Reject(&WorkerError{Reason: "gone fishing"})
		_, err := req.Future().Wait(context.Background())
		Expect(err).To(MatchError("worker failed: gone fishing"))
	})

	It("stops waiting when the context is done", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		req := NewRequest(ctx, types.NewQuery("localhost", dns.TypeA))
		_, err := req.Future().Wait(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(req.Abandoned()).To(BeTrue())
	})

	It("counts retries", func() {
		req := NewRequest(context.Background(), types.NewQuery("localhost", dns.TypeA))
		Expect(req.Retry()).To(Equal(1))
		Expect(req.Retry()).To(Equal(2))
	})

})
