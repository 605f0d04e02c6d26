// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package pool

import (
	"io"
	"sync"

	"github.com/siemens/procdns/wire"
	"github.com/thediveo/lxkns/log"
)

// ID identifies a worker process or a channel to a worker process. Process
// IDs are issued by the pool, channel IDs by the transport.
type ID uint64

// Sink receives the events of a transport. A transport must not post any
// further events for a channel after it posted Closed for it.
type Sink interface {
	// Connected announces a new channel that still needs to authenticate.
	Connected(ch ID)
	// Received passes on data read from a channel.
	Received(ch ID, data []byte)
	// Closed announces that a channel has been closed.
	Closed(ch ID)
	// Exited announces that a worker process has terminated.
	Exited(proc ID)
}

// Transport spawns worker processes and carries frames between the pool and
// its workers. Except for Open, all methods get called only from the pool's
// reactor.
type Transport interface {
	// Open prepares the transport for spawning workers, posting events to
	// the specified sink until Shutdown.
	Open(sink Sink) error
	// Spawn starts a new worker process with the specified process ID. If
	// the worker can be talked to right away, Spawn returns its channel ID
	// and true. Otherwise, the worker connects later and needs to
	// authenticate.
	Spawn(proc ID) (ch ID, attached bool, err error)
	// Authenticate checks the first frame received on a channel, returning
	// the ID of the worker process the channel belongs to and true when the
	// frame is valid proof. Proofs can be used only once.
	Authenticate(ch ID, f wire.Frame) (proc ID, ok bool)
	// Forget invalidates any unused proof of the specified process.
	Forget(proc ID)
	// Send writes a complete frame to a channel.
	Send(ch ID, frame []byte) error
	// Disconnect closes a channel.
	Disconnect(ch ID)
	// Kill terminates a worker process.
	Kill(proc ID)
	// Shutdown terminates all worker processes, closes all channels and
	// waits for the transport's goroutines to finish.
	Shutdown()
}

// registry keeps track of the processes and channels of a transport, as well
// as the goroutines watching them.
type registry struct {
	sink  Sink
	mu    sync.Mutex // protects the process and channel maps.
	procs map[ID]Process
	chans map[ID]io.WriteCloser
	wg    sync.WaitGroup
}

func (g *registry) open(sink Sink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sink = sink
	g.procs = map[ID]Process{}
	g.chans = map[ID]io.WriteCloser{}
}

// watch registers a worker process and posts its exit.
func (g *registry) watch(proc ID, p Process) {
	g.mu.Lock()
	g.procs[proc] = p
	g.mu.Unlock()
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		err := p.Wait()
		log.Debugf("pool: worker process %d terminated: %v", proc, err)
		g.mu.Lock()
		delete(g.procs, proc)
		g.mu.Unlock()
		g.sink.Exited(proc)
	}()
}

// attach registers a channel, writing frames to w, and then reads from r until
// it fails, posting the data read.
func (g *registry) attach(ch ID, w io.WriteCloser, r io.Reader) {
	g.mu.Lock()
	g.chans[ch] = w
	g.mu.Unlock()
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				g.sink.Received(ch, append([]byte(nil), buf[:n]...))
			}
			if err != nil {
				g.Disconnect(ch)
				g.sink.Closed(ch)
				return
			}
		}
	}()
}

func (g *registry) Send(ch ID, frame []byte) error {
	g.mu.Lock()
	w, ok := g.chans[ch]
	g.mu.Unlock()
	if !ok {
		return io.ErrClosedPipe
	}
	_, err := w.Write(frame)
	return err
}

func (g *registry) Disconnect(ch ID) {
	g.mu.Lock()
	w, ok := g.chans[ch]
	delete(g.chans, ch)
	g.mu.Unlock()
	if ok {
		_ = w.Close()
	}
}

func (g *registry) Kill(proc ID) {
	g.mu.Lock()
	p, ok := g.procs[proc]
	g.mu.Unlock()
	if ok {
		_ = p.Kill()
	}
}

// shutdown kills all processes and closes all channels, then waits for the
// watching goroutines to finish.
func (g *registry) shutdown() {
	g.mu.Lock()
	procs := g.procs
	chans := g.chans
	g.procs = map[ID]Process{}
	g.chans = map[ID]io.WriteCloser{}
	g.mu.Unlock()
	for _, p := range procs {
		_ = p.Kill()
	}
	for _, w := range chans {
		_ = w.Close()
	}
	g.wg.Wait()
}
