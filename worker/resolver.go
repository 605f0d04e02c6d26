// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
	"github.com/siemens/procdns/wire"
)

// SyntheticTTL is the TTL of answers the operating system resolver API
// doesn't tell us the real TTL for.
const SyntheticTTL = 1

// ErrUnsupportedType is returned for query types the system resolver cannot
// look up.
var ErrUnsupportedType = errors.New("unsupported query type")

// CNAMEResolver looks up the CNAME records for a name.
type CNAMEResolver interface {
	// LookupCNAME returns the CNAME record(s) for the specified name; an
	// empty list if there are none.
	LookupCNAME(ctx context.Context, name string) ([]wire.Answer, error)
}

// Resolver is the operating system facility a Worker resolves names with.
type Resolver interface {
	CNAMEResolver
	// LookupAddress returns a single IPv4 address of the specified name. It
	// returns the name itself when passed an address literal.
	LookupAddress(ctx context.Context, name string) (string, error)
	// LookupRecords returns the records of the specified type for a name, in
	// no particular order.
	LookupRecords(ctx context.Context, name string, qtype uint16) ([]wire.Answer, error)
}

// SystemResolver resolves names using the system resolver, as configured for
// the host (hosts file, NSS, resolver configuration).
//
// SystemResolver sits on top of [net.Resolver], which comes with limits:
//
//   - PreferGo being false doesn't force the cgo (libc/NSS) resolver; Go
//     still picks its own resolver where it thinks it can, unless forced
//     using GODEBUG=netdns=cgo and built with cgo.
//   - LookupCNAME follows the whole alias chain, so CNAME answers point from
//     the queried name directly to the canonical name, skipping any
//     intermediate aliases.
//   - the address records lookup repeats the address lookup of the A
//     shortcut, so for address queries it only ever finds what the shortcut
//     didn't.
//   - there is no SOA lookup; SOA queries fail with [ErrUnsupportedType].
type SystemResolver struct {
	resolver *net.Resolver
}

var _ Resolver = (*SystemResolver)(nil)

// NewSystemResolver returns a new SystemResolver.
func NewSystemResolver() *SystemResolver {
	return &SystemResolver{
		resolver: &net.Resolver{PreferGo: false},
	}
}

// LookupAddress returns the first IPv4 address of the specified name.
func (s *SystemResolver) LookupAddress(ctx context.Context, name string) (string, error) {
	ips, err := s.resolver.LookupIP(ctx, "ip4", name)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return ips[0].String(), nil
}

// LookupCNAME returns a single CNAME record pointing from the specified name
// to its canonical name, unless the name already is canonical.
func (s *SystemResolver) LookupCNAME(ctx context.Context, name string) ([]wire.Answer, error) {
	cname, err := s.resolver.LookupCNAME(ctx, name)
	if err != nil {
		return nil, notFoundIsEmpty(err)
	}
	if sameName(cname, name) {
		return nil, nil
	}
	return []wire.Answer{{
		Host:   trimDot(name),
		Class:  "IN",
		TTL:    SyntheticTTL,
		Type:   "CNAME",
		Target: trimDot(cname),
	}}, nil
}

// LookupRecords returns the records of the specified type. The Go system
// resolver API doesn't cover SOA records, so these are reported as being
// unsupported.
func (s *SystemResolver) LookupRecords(ctx context.Context, name string, qtype uint16) ([]wire.Answer, error) {
	answers := []wire.Answer{}
	answer := func(a wire.Answer) {
		a.Class = "IN"
		a.TTL = SyntheticTTL
		a.Type = dns.TypeToString[qtype]
		if a.Host == "" {
			a.Host = trimDot(name)
		}
		answers = append(answers, a)
	}
	switch qtype {
	case dns.TypeA:
		ips, err := s.resolver.LookupIP(ctx, "ip4", name)
		if err != nil {
			return answers, notFoundIsEmpty(err)
		}
		// Just like the classic C resolver API, the addresses are owned by
		// the canonical name, not the name we've been asked for.
		owner := trimDot(name)
		if cname, err := s.resolver.LookupCNAME(ctx, name); err == nil {
			owner = trimDot(cname)
		}
		for _, ip := range ips {
			answer(wire.Answer{Host: owner, IP: ip.String()})
		}
	case dns.TypeCNAME:
		return s.LookupCNAME(ctx, name)
	case dns.TypeMX:
		mxs, err := s.resolver.LookupMX(ctx, name)
		if err != nil {
			return answers, notFoundIsEmpty(err)
		}
		for _, mx := range mxs {
			answer(wire.Answer{Pri: mx.Pref, Target: trimDot(mx.Host)})
		}
	case dns.TypeNS:
		nss, err := s.resolver.LookupNS(ctx, name)
		if err != nil {
			return answers, notFoundIsEmpty(err)
		}
		for _, ns := range nss {
			answer(wire.Answer{Target: trimDot(ns.Host)})
		}
	case dns.TypePTR:
		names, err := s.resolver.LookupAddr(ctx, reverseAddress(name))
		if err != nil {
			return answers, notFoundIsEmpty(err)
		}
		for _, n := range names {
			answer(wire.Answer{Target: trimDot(n)})
		}
	case dns.TypeTXT:
		txts, err := s.resolver.LookupTXT(ctx, name)
		if err != nil {
			return answers, notFoundIsEmpty(err)
		}
		for _, txt := range txts {
			answer(wire.Answer{Txt: txt})
		}
	default:
		return nil, fmt.Errorf("%w %s", ErrUnsupportedType, dns.Type(qtype).String())
	}
	return answers, nil
}

// notFoundIsEmpty swallows "not found" errors, as not finding any records is
// a perfectly fine answer.
func notFoundIsEmpty(err error) error {
	var dnserr *net.DNSError
	if errors.As(err, &dnserr) && dnserr.IsNotFound {
		return nil
	}
	return err
}

// reverseAddress turns a reverse lookup name from the in-addr.arpa or ip6.arpa
// domains into the IP address it stands for. Any other name is returned
// unchanged.
func reverseAddress(name string) string {
	arpa := strings.ToLower(trimDot(name))
	switch {
	case strings.HasSuffix(arpa, ".in-addr.arpa"):
		labels := strings.Split(strings.TrimSuffix(arpa, ".in-addr.arpa"), ".")
		if len(labels) != 4 {
			return name
		}
		for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
			labels[i], labels[j] = labels[j], labels[i]
		}
		return strings.Join(labels, ".")
	case strings.HasSuffix(arpa, ".ip6.arpa"):
		nibbles := strings.Split(strings.TrimSuffix(arpa, ".ip6.arpa"), ".")
		if len(nibbles) != 32 {
			return name
		}
		var b strings.Builder
		for i := len(nibbles) - 1; i >= 0; i-- {
			b.WriteString(nibbles[i])
			if i > 0 && i%4 == 0 {
				b.WriteByte(':')
			}
		}
		return b.String()
	}
	return name
}

// trimDot returns the name without a trailing root dot, the way the C
// resolver API reports names.
func trimDot(name string) string {
	return strings.TrimSuffix(name, ".")
}

// sameName returns true if both names refer to the same DNS name, regardless
// of case and trailing root dot.
func sameName(a, b string) bool {
	return strings.EqualFold(dns.Fqdn(a), dns.Fqdn(b))
}

// nameKey returns the canonical map key for a DNS name.
func nameKey(name string) string {
	return strings.ToLower(dns.Fqdn(name))
}
