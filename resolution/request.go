// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolution

import (
	"context"
	"fmt"

	"github.com/miekg/dns"
	"github.com/siemens/procdns/types"
	"github.com/siemens/procdns/wire"
)

// Request is a query waiting to be resolved by a worker.
type Request struct {
	ctx     context.Context
	query   types.Query
	future  *Future
	retries int
}

// NewRequest returns a new Request for the specified query. The context is
// only consulted before the request gets dispatched to a worker: requests
// whose context is done by then are discarded instead.
func NewRequest(ctx context.Context, q types.Query) *Request {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Request{
		ctx:    ctx,
		query:  q,
		future: newFuture(),
	}
}

// Query returns the query of this request.
func (r *Request) Query() types.Query { return r.query }

// Context returns the context the request was issued with.
func (r *Request) Context() context.Context { return r.ctx }

// Future returns the consuming side of the request's result slot.
func (r *Request) Future() *Future { return r.future }

// Resolve settles the request with the specified response.
func (r *Request) Resolve(resp *Response) { r.future.settle(resp, nil) }

// Reject settles the request with the specified failure.
func (r *Request) Reject(err error) { r.future.settle(nil, err) }

// Abandoned returns true if the caller isn't interested in the result anymore.
func (r *Request) Abandoned() bool { return r.ctx.Err() != nil }

// Retry counts another attempt at getting this request resolved and returns
// the number of retries so far.
func (r *Request) Retry() int {
	r.retries++
	return r.retries
}

// Wire returns the projection of this request as sent to workers.
func (r *Request) Wire() (wire.Request, error) {
	code, err := TypeCode(r.query.Type)
	if err != nil {
		return wire.Request{}, err
	}
	return wire.Request{Name: r.query.Name, Type: code}, nil
}

// Frame returns the wire representation of this request.
func (r *Request) Frame() ([]byte, error) {
	req, err := r.Wire()
	if err != nil {
		return nil, err
	}
	return wire.Marshal(req)
}

// TypeCode returns the numeric record type code workers understand for the
// specified query type.
func TypeCode(qtype uint16) (int, error) {
	switch qtype {
	case dns.TypeA, dns.TypeCNAME, dns.TypeMX, dns.TypeNS,
		dns.TypePTR, dns.TypeSOA, dns.TypeTXT:
		return int(qtype), nil
	}
	return 0, fmt.Errorf("%w %d", ErrUnknownQueryType, qtype)
}
