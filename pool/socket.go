// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package pool

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/siemens/procdns/wire"
	"github.com/siemens/procdns/worker"
	"github.com/thediveo/lxkns/log"
)

// SocketTransport listens on a loopback TCP port and has its workers connect
// back. Each worker gets a fresh cookie that it has to present as the first
// frame on its connection, proving that the connection belongs to it.
type SocketTransport struct {
	registry
	launcher Launcher
	netns    string
	nextch   atomic.Uint64
	port     string
	cookies  map[string]ID // only touched by the reactor.
	lmu      sync.Mutex    // protects the listener.
	listener net.Listener
	closing  chan struct{} // closed when the listener is about to get closed.
	accepted chan struct{} // closed when the acceptor has finished.

	wrapListener func(net.Listener) net.Listener // for testing.
}

// Backoff limits when accepting connections fails, such as when running out
// of file descriptors.
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

var _ Transport = (*SocketTransport)(nil)

// SocketTransportOption can be passed to NewSocketTransport when creating new
// SocketTransport objects.
type SocketTransportOption func(*SocketTransport)

// NewSocketTransport returns a new SocketTransport, starting worker processes
// using the specified launcher.
func NewSocketTransport(launcher Launcher, options ...SocketTransportOption) *SocketTransport {
	t := &SocketTransport{launcher: launcher}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// ListenInNetworkNamespace optionally listens for worker connections inside
// the network namespace referenced by the specified filesystem path. This is
// necessary when the workers run in that network namespace.
func ListenInNetworkNamespace(netnsref string) SocketTransportOption {
	return func(t *SocketTransport) {
		t.netns = netnsref
	}
}

// Open starts listening on an OS-assigned loopback port.
func (t *SocketTransport) Open(sink Sink) error {
	var l net.Listener
	err := inNetworkNamespace(t.netns, func() (err error) {
		l, err = net.Listen("tcp", "127.0.0.1:0")
		return
	})
	if err != nil {
		return fmt.Errorf("cannot listen for workers: %w", err)
	}
	t.open(sink)
	t.cookies = map[string]ID{}
	t.port = strconv.Itoa(l.Addr().(*net.TCPAddr).Port)
	if t.wrapListener != nil {
		l = t.wrapListener(l)
	}
	t.lmu.Lock()
	t.listener = l
	t.closing = make(chan struct{})
	t.accepted = make(chan struct{})
	t.lmu.Unlock()
	log.Debugf("pool: listening for workers on %s", l.Addr())
	go t.accept(l, t.closing, t.accepted)
	return nil
}

// Addr returns the address workers connect to, or nil if not listening.
func (t *SocketTransport) Addr() net.Addr {
	t.lmu.Lock()
	defer t.lmu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// accept registers connections until the listener gets closed. Other accept
// errors are retried after a backoff, doubling up to maxAcceptBackoff.
func (t *SocketTransport) accept(l net.Listener, closing chan struct{}, done chan struct{}) {
	defer close(done)
	var backoff time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			log.Warnf("pool: cannot accept worker connection, retrying in %s: %s",
				backoff, err.Error())
			select {
			case <-time.After(backoff):
				continue
			case <-closing:
				return
			}
		}
		backoff = 0
		ch := ID(t.nextch.Add(1))
		t.sink.Connected(ch)
		t.attach(ch, conn, conn)
	}
}

// Spawn starts a new worker process, passing it the listening port and a
// fresh cookie.
func (t *SocketTransport) Spawn(proc ID) (ID, bool, error) {
	cookie := uuid.NewString()
	p, _, _, err := t.launcher.Launch([]string{
		worker.CookieEnv + "=" + cookie,
		worker.PortEnv + "=" + t.port,
	}, false)
	if err != nil {
		return 0, false, err
	}
	t.cookies[cookie] = proc
	t.watch(proc, p)
	return 0, false, nil
}

// Authenticate consumes the cookie presented in the first frame of a
// connection.
func (t *SocketTransport) Authenticate(ch ID, f wire.Frame) (ID, bool) {
	auth, ok := f.(wire.Auth)
	if !ok {
		return 0, false
	}
	proc, ok := t.cookies[auth.Cookie]
	if !ok {
		return 0, false
	}
	delete(t.cookies, auth.Cookie)
	return proc, true
}

// Forget discards the cookie of a process that never connected.
func (t *SocketTransport) Forget(proc ID) {
	for cookie, p := range t.cookies {
		if p == proc {
			delete(t.cookies, cookie)
		}
	}
}

// Shutdown stops listening, terminates all workers and closes all
// connections.
func (t *SocketTransport) Shutdown() {
	t.lmu.Lock()
	l := t.listener
	closing, accepted := t.closing, t.accepted
	t.listener = nil
	t.lmu.Unlock()
	if l == nil {
		return
	}
	close(closing)
	_ = l.Close()
	<-accepted
	t.shutdown()
	t.cookies = nil
}
