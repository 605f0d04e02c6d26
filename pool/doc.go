/*
Package pool offloads blocking name resolution into a pool of worker
processes, so that callers never stall on the operating system's synchronous
resolver API.

A [Pool] keeps a configurable number of worker processes alive while it is
running, queues requests in FIFO order and dispatches each request to exactly
one idle worker. Workers that die, hang up, or violate the protocol are
replaced; requests in flight on them are queued again.

The pool talks to its workers via a [Transport]:

  - [PipeTransport] uses the standard input and output of each worker
    process.
  - [SocketTransport] listens on a loopback TCP port and has workers connect
    back, authenticating each connection with a single-use cookie. Use it on
    platforms where pipes cannot be read asynchronously.

# Usage

	p, _ := pool.New(4, pool.NewPipeTransport(&pool.ExecLauncher{
	    Command: []string{"procdns-worker"},
	}))
	if err := p.Start(); err != nil {
	    // ...
	}
	defer p.Stop()
	msg, err := p.Query(ctx, "", types.NewQuery("example.org", dns.TypeA))

# Concurrency

All pool state is owned by a single reactor goroutine per running pool. The
transports only post events (data received, connection closed, process
exited, and so on) to the reactor; they never touch pool state themselves.

Connections to a [SocketTransport] that don't present a valid cookie within
the authentication timeout (see [WithAuthTimeout]) get hung up on.

# Acknowledgements

The request queue is a [gammazero/deque]; respawning crashing workers is
throttled using [golang.org/x/time/rate].

[gammazero/deque]: https://github.com/gammazero/deque
[golang.org/x/time/rate]: https://pkg.go.dev/golang.org/x/time/rate
*/
package pool
