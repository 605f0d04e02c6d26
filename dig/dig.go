// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dig

import (
	"context"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/miekg/dns"
	"github.com/siemens/procdns/executor"
	"github.com/siemens/procdns/types"
)

// Result is the outcome of looking up a single name.
type Result struct {
	Query types.Query
	Msg   *dns.Msg      // nil if the lookup failed.
	Err   error         // nil if the lookup succeeded.
	Took  time.Duration // time from issuing the query until the outcome.
}

// Digger looks up names using an executor and then streams its findings over
// its “news” channel.
type Digger struct {
	executor executor.Executor
	workers  *workerpool.WorkerPool
	news     chan Result
}

// New returns a new Digger running at most the specified number of lookups at
// the same time, as well as its “news stream”. The news channel gets closed
// only by [Digger.StopWait].
func New(size int, e executor.Executor) (*Digger, <-chan Result) {
	news := make(chan Result, size)
	return &Digger{
		executor: e,
		workers:  workerpool.New(size),
		news:     news,
	}, news
}

// Dig looks up the specified record type for all names, sending a Result for
// each name to the news channel. Dig doesn't wait for the lookups to finish.
// Lookups that haven't been started yet when the context is done are skipped
// and not reported.
func (d *Digger) Dig(ctx context.Context, names []string, qtype uint16) {
	for _, name := range names {
		q := types.NewQuery(name, qtype)
		d.workers.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			msg, err := d.executor.Query(ctx, "", q)
			// Avoid blocking endlessly in case of the context getting
			// cancelled.
			select {
			case d.news <- Result{Query: q, Msg: msg, Err: err, Took: time.Since(q.IssuedAt)}:
			case <-ctx.Done():
			}
		})
	}
}

// StopWait waits for all queued lookups to get processed and then finally
// closes the news channel.
func (d *Digger) StopWait() {
	d.workers.StopWait()
	close(d.news)
}
