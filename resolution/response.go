// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolution

import (
	"fmt"
	"net"

	"github.com/miekg/dns"
	"github.com/siemens/procdns/types"
	"github.com/siemens/procdns/wire"
)

// Response is the list of raw answers a worker found for a request.
type Response struct {
	answers []wire.Answer
}

// NewResponse returns a new Response for the specified answers.
func NewResponse(answers []wire.Answer) *Response {
	return &Response{answers: answers}
}

// Answers returns the raw answers.
func (r *Response) Answers() []wire.Answer {
	return r.answers
}

// Records returns the answers normalized into resource records, keeping their
// order.
func (r *Response) Records() ([]dns.RR, error) {
	rrs := make([]dns.RR, 0, len(r.answers))
	for _, answer := range r.answers {
		rr, err := Record(answer)
		if err != nil {
			return nil, err
		}
		rrs = append(rrs, rr)
	}
	return rrs, nil
}

// Message returns a DNS message with the specified query as its only question
// and the normalized answers.
func (r *Response) Message(q types.Query) (*dns.Msg, error) {
	rrs, err := r.Records()
	if err != nil {
		return nil, err
	}
	msg := &dns.Msg{
		MsgHdr: dns.MsgHdr{
			Response: true,
			Rcode:    dns.RcodeSuccess,
		},
		Question: []dns.Question{q.Question()},
		Answer:   rrs,
	}
	return msg, nil
}

// Record normalizes a single raw answer into a resource record.
func Record(answer wire.Answer) (dns.RR, error) {
	class, err := Class(answer.Class)
	if err != nil {
		return nil, err
	}
	rrtype, err := Type(answer.Type)
	if err != nil {
		return nil, err
	}
	hdr := dns.RR_Header{
		Name:   answer.Host,
		Rrtype: rrtype,
		Class:  class,
		Ttl:    answer.TTL,
	}
	switch rrtype {
	case dns.TypeA:
		ip := net.ParseIP(answer.IP).To4()
		if ip == nil {
			return nil, fmt.Errorf("%w: invalid address %q", ErrUnsupportedData, answer.IP)
		}
		return &dns.A{Hdr: hdr, A: ip}, nil
	case dns.TypeCNAME:
		return &dns.CNAME{Hdr: hdr, Target: answer.Target}, nil
	case dns.TypeMX:
		return &dns.MX{Hdr: hdr, Preference: answer.Pri, Mx: answer.Target}, nil
	case dns.TypeNS:
		return &dns.NS{Hdr: hdr, Ns: answer.Target}, nil
	case dns.TypePTR:
		return &dns.PTR{Hdr: hdr, Ptr: answer.Target}, nil
	case dns.TypeTXT:
		return &dns.TXT{Hdr: hdr, Txt: []string{answer.Txt}}, nil
	}
	return nil, fmt.Errorf("%w: type %s", ErrUnsupportedData, answer.Type)
}

// Class returns the class constant for the textual class of a raw answer.
func Class(class string) (uint16, error) {
	if class == "IN" {
		return dns.ClassINET, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownClass, class)
}

// Type returns the record type constant for the textual type of a raw answer.
func Type(rrtype string) (uint16, error) {
	switch rrtype {
	case "A", "CNAME", "MX", "NS", "PTR", "SOA", "TXT":
		return dns.StringToType[rrtype], nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownType, rrtype)
}
