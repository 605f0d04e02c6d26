// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/siemens/procdns/wire"
	"github.com/thediveo/lxkns/log"
)

// Environment variables a pool sets for workers that need to connect back.
const (
	CookieEnv = "PROCDNS_WORKER_COOKIE"
	PortEnv   = "PROCDNS_WORKER_PORT"
)

// DebugEnv enables debug logging in workers when set to a non-empty value.
const DebugEnv = "PROCDNS_DEBUG"

// Endpoint tells a worker how to reach its pool. The zero Endpoint means
// standard input and output.
type Endpoint struct {
	Addr   string // loopback address of the pool's acceptor.
	Cookie string // single-use authentication cookie.
}

// FromEnvironment returns the Endpoint the pool passed in the environment, as
// read by getenv (such as os.Getenv).
func FromEnvironment(getenv func(string) string) Endpoint {
	port := getenv(PortEnv)
	if port == "" {
		return Endpoint{}
	}
	return Endpoint{
		Addr:   net.JoinHostPort("127.0.0.1", port),
		Cookie: getenv(CookieEnv),
	}
}

// IsSocket returns true if the worker needs to connect back to its pool.
func (e Endpoint) IsSocket() bool {
	return e.Addr != ""
}

// Run serves the pool at the specified endpoint: either over stdin and
// stdout, or over a connection to the pool.
func (w *Worker) Run(ctx context.Context, e Endpoint, stdin io.Reader, stdout io.Writer) error {
	if e.IsSocket() {
		return w.DialAndServe(ctx, e.Addr, e.Cookie)
	}
	return w.Serve(ctx, stdin, stdout)
}

// DialAndServe connects to the pool at addr, authenticates using the cookie,
// and then serves requests over the connection.
func (w *Worker) DialAndServe(ctx context.Context, addr string, cookie string) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("unable to connect to %s: %w", addr, err)
	}
	defer conn.Close()
	// Reads on the connection don't know about contexts, so unblock them by
	// closing the connection when the context is done.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	if err := wire.Write(conn, wire.Auth{Cookie: cookie}); err != nil {
		return fmt.Errorf("unable to authenticate: %w", err)
	}
	log.Debugf("worker: connected to %s", addr)
	return w.Serve(ctx, conn, conn)
}
