// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package pool

import (
	"context"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/siemens/procdns/resolution"
	"github.com/siemens/procdns/types"
	"golang.org/x/time/rate"
)

// Defaults for throttling the (re)spawning of worker processes.
const (
	DefaultRespawnDelay    = time.Second
	DefaultRespawnInterval = 100 * time.Millisecond
)

// DefaultAuthTimeout is the time a worker connection gets to present its
// cookie.
const DefaultAuthTimeout = 10 * time.Second

// Pool resolves queries using a set of worker processes. A Pool is created
// stopped; use [Pool.Start] to spawn its workers.
type Pool struct {
	size            int
	transport       Transport
	maxRetries      int
	respawnDelay    time.Duration
	respawnInterval time.Duration
	authTimeout     time.Duration

	mu      sync.RWMutex // serializes starting and stopping.
	reactor *reactor     // nil while stopped.
	procs   ID           // last process ID issued.
}

var _ resolution.Sender = (*Pool)(nil)

// PoolOption can be passed to New when creating new Pool objects.
type PoolOption func(*Pool)

// New returns a new Pool of the specified number of worker processes,
// talking to its workers via the specified transport.
func New(size int, transport Transport, options ...PoolOption) (*Pool, error) {
	if size < 1 {
		return nil, ErrInvalidSize
	}
	p := &Pool{
		size:            size,
		transport:       transport,
		respawnDelay:    DefaultRespawnDelay,
		respawnInterval: DefaultRespawnInterval,
		authTimeout:     DefaultAuthTimeout,
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// WithMaxRetries limits how often a request gets queued again after its
// worker failed, rejecting the request with [ErrRetriesExhausted] after that.
// Zero means unlimited retries, which is the default.
func WithMaxRetries(n int) PoolOption {
	return func(p *Pool) {
		p.maxRetries = n
	}
}

// WithRespawnDelay sets how long to wait before trying again after a worker
// process failed to start.
func WithRespawnDelay(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.respawnDelay = d
	}
}

// WithRespawnInterval sets the minimum average interval between spawning
// worker processes, once the pool has spawned its initial workers.
func WithRespawnInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.respawnInterval = d
	}
}

// WithAuthTimeout sets how long connections to the pool may take to
// authenticate before the pool hangs up on them.
func WithAuthTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.authTimeout = d
	}
}

// Size returns the number of worker processes the pool keeps alive.
func (p *Pool) Size() int { return p.size }

// Start opens the transport and spawns the worker processes. A stopped Pool
// can be started again.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reactor != nil {
		return ErrAlreadyRunning
	}
	r := newReactor(p)
	if err := p.transport.Open(r); err != nil {
		return err
	}
	p.reactor = r
	go r.run()
	return nil
}

// Stop terminates all worker processes and rejects all requests not settled
// yet with [ErrStopped]. Stop waits for the pool's goroutines to finish. It
// is fine to stop a pool that isn't running.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reactor == nil {
		return
	}
	close(p.reactor.stopping)
	<-p.reactor.finished
	p.reactor = nil
}

// Running returns true if the pool has been started and not stopped since.
func (p *Pool) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reactor != nil
}

// Send queues a request for resolution by the next available worker. Requests
// for query types workers don't understand are rejected immediately, as are
// requests sent to a pool that isn't running.
func (p *Pool) Send(req *resolution.Request) {
	if _, err := req.Wire(); err != nil {
		req.Reject(err)
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.reactor == nil {
		req.Reject(ErrNotRunning)
		return
	}
	p.reactor.post(sendEvent{req: req})
}

// Query resolves the specified query, returning a DNS message with the query
// as its only question. Workers always use the operating system's resolver,
// so the nameserver is ignored.
func (p *Pool) Query(ctx context.Context, nameserver string, q types.Query) (*dns.Msg, error) {
	return resolution.Exchange(ctx, p, q)
}

// Stats is a snapshot of a pool's bookkeeping.
type Stats struct {
	Processes int // live worker processes.
	Spawning  int // worker processes not connected yet.
	Pending   int // channels waiting for authentication.
	Available int // idle channels.
	Busy      int // channels with a request in flight.
	Queued    int // requests waiting for a channel.
}

// Stats returns a snapshot of the pool's bookkeeping; the zero Stats when the
// pool isn't running.
func (p *Pool) Stats() Stats {
	var stats Stats
	p.inspect(func(r *reactor) {
		stats = r.stats()
	})
	return stats
}

// inspect runs fn on the reactor, returning false if the pool isn't running.
func (p *Pool) inspect(fn func(r *reactor)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.reactor == nil {
		return false
	}
	done := make(chan struct{})
	p.reactor.post(inspectEvent{fn: fn, done: done})
	<-done
	return true
}

// nextProc issues a new process ID; only called from the reactor, which is
// never running concurrently with another one of the same pool.
func (p *Pool) nextProc() ID {
	p.procs++
	return p.procs
}

// newLimiter returns the spawn limiter of a freshly started pool, allowing
// the initial workers to be spawned in one go.
func (p *Pool) newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(p.respawnInterval), p.size)
}
