// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolution

import (
	"context"
	"sync/atomic"
)

// Future is the consuming side of a one-shot result slot.
type Future struct {
	done    chan struct{}
	settled atomic.Bool
	resp    *Response
	err     error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// settle stores the result and wakes up all waiters. Settling a second time
// panics.
func (f *Future) settle(resp *Response, err error) {
	if !f.settled.CompareAndSwap(false, true) {
		panic("resolution: request settled twice")
	}
	f.resp, f.err = resp, err
	close(f.done)
}

// Done returns a channel that gets closed as soon as the Future has been
// settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the settled result. It must only be called after Done has
// been closed.
func (f *Future) Result() (*Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	default:
		panic("resolution: result of unsettled request")
	}
}

// Wait blocks until the Future has been settled or the context is done,
// whichever comes first.
func (f *Future) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
