// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package pool

import (
	"time"

	"github.com/gammazero/deque"
	"github.com/siemens/procdns/resolution"
	"github.com/siemens/procdns/types"
	"github.com/siemens/procdns/wire"
	"github.com/thediveo/lxkns/log"
	"golang.org/x/time/rate"
)

// Events posted to the reactor.
type (
	sendEvent    struct{ req *resolution.Request }
	connectEvent struct{ ch ID }
	dataEvent    struct {
		ch   ID
		data []byte
	}
	closeEvent       struct{ ch ID }
	exitEvent        struct{ proc ID }
	authTimeoutEvent struct{ ch ID }
	inspectEvent     struct {
		fn   func(r *reactor)
		done chan struct{}
	}
)

// channel is the pool's view on a channel to a worker process.
type channel struct {
	proc      ID // zero while pending authentication.
	state     types.State
	decoder   *wire.Decoder
	authTimer *time.Timer // running while pending authentication.
}

// reactor owns the state of a running pool. All its methods except the Sink
// methods and post are called only from the reactor's own goroutine.
type reactor struct {
	pool      *Pool
	transport Transport
	inbox     chan interface{}
	stopping  chan struct{} // closed to stop the reactor.
	done      chan struct{} // closed when the reactor doesn't accept events anymore.
	finished  chan struct{} // closed after the reactor has completely shut down.

	procs    map[ID]types.State // Spawning until the process has its channel.
	channels map[ID]*channel
	idle     []ID // available channels, in order of becoming available.
	inflight map[ID]*resolution.Request
	queue    deque.Deque[*resolution.Request]
	limiter  *rate.Limiter
	respawn  *time.Timer // pending delayed spawn, if any.
}

var _ Sink = (*reactor)(nil)

func newReactor(p *Pool) *reactor {
	return &reactor{
		pool:      p,
		transport: p.transport,
		inbox:     make(chan interface{}, 64),
		stopping:  make(chan struct{}),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		procs:     map[ID]types.State{},
		channels:  map[ID]*channel{},
		inflight:  map[ID]*resolution.Request{},
		limiter:   p.newLimiter(),
	}
}

// post an event to the reactor, unless it has already stopped accepting
// events.
func (r *reactor) post(ev interface{}) {
	select {
	case r.inbox <- ev:
	case <-r.done:
	}
}

func (r *reactor) Connected(ch ID)             { r.post(connectEvent{ch: ch}) }
func (r *reactor) Received(ch ID, data []byte) { r.post(dataEvent{ch: ch, data: data}) }
func (r *reactor) Closed(ch ID)                { r.post(closeEvent{ch: ch}) }
func (r *reactor) Exited(proc ID)              { r.post(exitEvent{proc: proc}) }

// run the reactor until it gets stopped.
func (r *reactor) run() {
	defer close(r.finished)
	r.spawn()
	for {
		var respawn <-chan time.Time
		if r.respawn != nil {
			respawn = r.respawn.C
		}
		select {
		case <-r.stopping:
			r.shutdown()
			return
		case <-respawn:
			r.respawn = nil
			r.spawn()
			r.flush()
		case ev := <-r.inbox:
			r.handle(ev)
		}
	}
}

func (r *reactor) handle(ev interface{}) {
	switch ev := ev.(type) {
	case sendEvent:
		r.queue.PushBack(ev.req)
		r.flush()
	case connectEvent:
		r.handleConnection(ev.ch)
	case dataEvent:
		r.handleData(ev.ch, ev.data)
	case closeEvent:
		r.handleClose(ev.ch)
	case exitEvent:
		r.handleExit(ev.proc)
	case authTimeoutEvent:
		r.handleAuthTimeout(ev.ch)
	case inspectEvent:
		ev.fn(r)
		close(ev.done)
	}
}

// shutdown rejects all requests not yet settled and then shuts down the
// transport.
func (r *reactor) shutdown() {
	close(r.done)
	if r.respawn != nil {
		r.respawn.Stop()
		r.respawn = nil
	}
	for _, c := range r.channels {
		if c.authTimer != nil {
			c.authTimer.Stop()
		}
	}
	for ch, req := range r.inflight {
		delete(r.inflight, ch)
		req.Reject(ErrStopped)
	}
	for r.queue.Len() > 0 {
		r.queue.PopFront().Reject(ErrStopped)
	}
	// Requests cannot be sent anymore while stopping, but some might have
	// been posted before.
drain:
	for {
		select {
		case ev := <-r.inbox:
			switch ev := ev.(type) {
			case sendEvent:
				ev.req.Reject(ErrStopped)
			case inspectEvent:
				close(ev.done)
			}
		default:
			break drain
		}
	}
	r.transport.Shutdown()
	log.Debugf("pool: stopped")
}

// spawn worker processes until the pool is complete again, unless spawning is
// currently throttled or delayed.
func (r *reactor) spawn() {
	for len(r.procs) < r.pool.size && r.respawn == nil {
		if !r.limiter.Allow() {
			reservation := r.limiter.Reserve()
			delay := reservation.Delay()
			reservation.Cancel()
			log.Debugf("pool: throttling worker spawning for %s", delay)
			r.delaySpawn(delay)
			return
		}
		proc := r.pool.nextProc()
		ch, attached, err := r.transport.Spawn(proc)
		if err != nil {
			log.Warnf("pool: cannot spawn worker: %s", err.Error())
			r.delaySpawn(r.pool.respawnDelay)
			return
		}
		r.procs[proc] = types.Spawning
		if attached {
			r.procs[proc] = types.Available
			r.channels[ch] = &channel{
				proc:    proc,
				state:   types.Available,
				decoder: wire.NewDecoder(),
			}
			r.idle = append(r.idle, ch)
		}
		log.Debugf("pool: spawned worker process %d", proc)
	}
}

func (r *reactor) delaySpawn(d time.Duration) {
	if d <= 0 {
		d = time.Millisecond
	}
	r.respawn = time.NewTimer(d)
}

// despawn forcibly terminates a channel and its worker process, if known. A
// request in flight on the channel gets queued again.
func (r *reactor) despawn(ch ID) {
	c, ok := r.channels[ch]
	if !ok {
		return
	}
	log.Debugf("pool: despawning channel %d of worker process %d", ch, c.proc)
	r.remove(ch)
	r.transport.Disconnect(ch)
	if c.proc != 0 {
		r.transport.Kill(c.proc)
	}
}

// remove a channel from the bookkeeping, queuing its request again, if any.
func (r *reactor) remove(ch ID) {
	c, ok := r.channels[ch]
	if !ok {
		return
	}
	c.state = types.Dead
	if c.authTimer != nil {
		c.authTimer.Stop()
	}
	delete(r.channels, ch)
	for idx, id := range r.idle {
		if id == ch {
			r.idle = append(r.idle[:idx], r.idle[idx+1:]...)
			break
		}
	}
	if req, ok := r.inflight[ch]; ok {
		delete(r.inflight, ch)
		r.retry(req)
	}
}

// retry queues a request again, unless it has been retried too often.
func (r *reactor) retry(req *resolution.Request) {
	retries := req.Retry()
	if limit := r.pool.maxRetries; limit > 0 && retries > limit {
		log.Debugf("pool: giving up on %s", req.Query())
		req.Reject(ErrRetriesExhausted)
		return
	}
	log.Debugf("pool: retrying %s", req.Query())
	r.queue.PushBack(req)
}

// flush dispatches queued requests to available channels, one request per
// channel.
func (r *reactor) flush() {
	for len(r.idle) > 0 && r.queue.Len() > 0 {
		req := r.queue.PopFront()
		if req.Abandoned() {
			req.Reject(req.Context().Err())
			continue
		}
		frame, err := req.Frame()
		if err != nil {
			req.Reject(err)
			continue
		}
		ch := r.idle[0]
		r.idle = r.idle[1:]
		r.channels[ch].state = types.Busy
		r.inflight[ch] = req
		if err := r.transport.Send(ch, frame); err != nil {
			log.Warnf("pool: cannot send request to channel %d: %s", ch, err.Error())
			r.despawn(ch)
		}
	}
}

// handleConnection registers a new channel that first needs to authenticate
// within the pool's authentication timeout.
func (r *reactor) handleConnection(ch ID) {
	c := &channel{
		state:   types.Authenticating,
		decoder: wire.NewDecoder(),
	}
	c.authTimer = time.AfterFunc(r.pool.authTimeout, func() {
		r.post(authTimeoutEvent{ch: ch})
	})
	r.channels[ch] = c
}

// handleAuthTimeout hangs up on a channel that still hasn't authenticated.
func (r *reactor) handleAuthTimeout(ch ID) {
	c, ok := r.channels[ch]
	if !ok || c.state != types.Authenticating {
		return
	}
	log.Warnf("pool: channel %d failed to authenticate in time", ch)
	r.remove(ch)
	r.transport.Disconnect(ch)
}

// handleData splits the data received on a channel into frames and handles
// them.
func (r *reactor) handleData(ch ID, data []byte) {
	c, ok := r.channels[ch]
	if !ok {
		return
	}
	frames, err := c.decoder.Feed(data)
	for _, frame := range frames {
		// handling a frame might have done away with the channel.
		if _, ok := r.channels[ch]; !ok {
			return
		}
		if c.state == types.Authenticating {
			r.authenticate(ch, c, frame)
			continue
		}
		r.handleMessage(ch, frame)
	}
	if err != nil {
		if _, ok := r.channels[ch]; ok {
			log.Warnf("pool: channel %d: %s", ch, err.Error())
			r.despawn(ch)
			r.flush()
		}
	}
}

// authenticate a pending channel using the first frame received on it.
func (r *reactor) authenticate(ch ID, c *channel, frame []byte) {
	var proc ID
	f, err := wire.Unmarshal(frame)
	ok := err == nil
	if ok {
		proc, ok = r.transport.Authenticate(ch, f)
	}
	if ok {
		// a process gets only a single channel.
		state, known := r.procs[proc]
		ok = known && !state.IsUsable()
	}
	if !ok {
		log.Warnf("pool: channel %d failed to authenticate", ch)
		r.remove(ch)
		r.transport.Disconnect(ch)
		return
	}
	log.Debugf("pool: channel %d authenticated for worker process %d", ch, proc)
	c.authTimer.Stop()
	c.authTimer = nil
	r.procs[proc] = types.Available
	c.proc = proc
	c.state = types.Available
	r.idle = append(r.idle, ch)
	r.flush()
}

// handleMessage settles the request in flight on a channel.
func (r *reactor) handleMessage(ch ID, frame []byte) {
	defer r.flush()
	req, ok := r.inflight[ch]
	if !ok {
		log.Warnf("pool: unsolicited message on channel %d", ch)
		r.despawn(ch)
		return
	}
	delete(r.inflight, ch)
	f, _ := wire.Unmarshal(frame)
	switch f := f.(type) {
	case wire.ResponseOk:
		req.Resolve(resolution.NewResponse(f.Answers))
		r.channels[ch].state = types.Available
		r.idle = append(r.idle, ch)
	case wire.ResponseErr:
		req.Reject(&resolution.WorkerError{Reason: f.Reason})
		r.despawn(ch)
	default:
		req.Reject(resolution.ErrNoDetail)
		r.despawn(ch)
	}
}

// handleClose forgets about a closed channel, queuing its request again.
func (r *reactor) handleClose(ch ID) {
	c, ok := r.channels[ch]
	if !ok {
		return
	}
	log.Debugf("pool: channel %d closed", ch)
	r.remove(ch)
	// a worker without its channel is of no use anymore.
	if c.proc != 0 {
		r.transport.Kill(c.proc)
	}
	r.flush()
}

// handleExit forgets about a terminated worker process and its channels,
// spawning a replacement.
func (r *reactor) handleExit(proc ID) {
	if _, ok := r.procs[proc]; !ok {
		return
	}
	delete(r.procs, proc)
	r.transport.Forget(proc)
	for ch, c := range r.channels {
		if c.proc == proc {
			r.remove(ch)
			r.transport.Disconnect(ch)
		}
	}
	r.spawn()
	r.flush()
}

func (r *reactor) stats() Stats {
	stats := Stats{
		Processes: len(r.procs),
		Available: len(r.idle),
		Busy:      len(r.inflight),
		Queued:    r.queue.Len(),
	}
	for _, c := range r.channels {
		if c.state == types.Authenticating {
			stats.Pending++
		}
	}
	for _, state := range r.procs {
		if state == types.Spawning {
			stats.Spawning++
		}
	}
	return stats
}
