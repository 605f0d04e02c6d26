// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/miekg/dns"
	"github.com/siemens/procdns/wire"
	"github.com/thediveo/lxkns/log"
)

// ErrMalformedRequest ends a worker's loop when the pool sent something other
// than a well-formed request.
var ErrMalformedRequest = errors.New("malformed request")

// Worker resolves requests read from its pool, one after another.
type Worker struct {
	resolver Resolver
}

// WorkerOption can be passed to New when creating new Worker objects.
type WorkerOption func(*Worker)

// New returns a new Worker, resolving names using the system resolver unless
// told otherwise using [WithResolver].
func New(options ...WorkerOption) *Worker {
	w := &Worker{
		resolver: NewSystemResolver(),
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// WithResolver sets the resolver a Worker uses.
func WithResolver(r Resolver) WorkerOption {
	return func(w *Worker) {
		w.resolver = r
	}
}

// Query resolves the specified name and record type.
//
// Address queries first take a shortcut via a single address lookup; this
// shortcut returns only a single address record owned by the queried name,
// without any alias information. Only if the shortcut doesn't find an address
// the general record lookup is done, with its answers getting canonicalized.
func (w *Worker) Query(ctx context.Context, name string, qtype uint16) ([]wire.Answer, error) {
	if qtype == dns.TypeA {
		addr, err := w.resolver.LookupAddress(ctx, name)
		if err == nil && addr != "" && addr != name {
			return []wire.Answer{{
				Host:  name,
				Class: "IN",
				TTL:   SyntheticTTL,
				Type:  "A",
				IP:    addr,
			}}, nil
		}
	}
	answers, err := w.resolver.LookupRecords(ctx, name, qtype)
	if err != nil {
		return nil, err
	}
	if qtype == dns.TypeA {
		answers = Canonicalize(ctx, w.resolver, name, answers)
	}
	return answers, nil
}

// Handle a single frame received from the pool, returning the reply frame.
// Handle returns false if the frame isn't a well-formed request.
func (w *Worker) Handle(ctx context.Context, frame []byte) ([]byte, bool) {
	f, err := wire.Unmarshal(frame)
	if err != nil {
		return nil, false
	}
	req, ok := f.(wire.Request)
	if !ok {
		return nil, false
	}
	var reply wire.Frame
	if req.Type < 0 || req.Type > math.MaxUint16 {
		reply = wire.ResponseErr{Reason: fmt.Sprintf("unknown query type %d", req.Type)}
	} else {
		log.Debugf("worker: resolving %s type %d", req.Name, req.Type)
		answers, err := w.Query(ctx, req.Name, uint16(req.Type))
		if err != nil {
			reply = wire.ResponseErr{Reason: err.Error()}
		} else {
			reply = wire.ResponseOk{Answers: answers}
		}
	}
	b, err := wire.Marshal(reply)
	if err != nil {
		return nil, false
	}
	return b, true
}

// Serve reads requests from in and writes the replies to out, until either in
// is exhausted, a malformed request is received, or the context is done. A
// malformed request ends Serve with ErrMalformedRequest.
func (w *Worker) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	decoder := wire.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			frames, ferr := decoder.Feed(buf[:n])
			for _, frame := range frames {
				if err := ctx.Err(); err != nil {
					return err
				}
				reply, ok := w.Handle(ctx, frame)
				if !ok {
					return ErrMalformedRequest
				}
				if _, err := out.Write(reply); err != nil {
					return fmt.Errorf("cannot reply: %w", err)
				}
			}
			if ferr != nil {
				return ferr
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			return rerr
		}
	}
}
