// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package pool

import (
	"io"

	"github.com/siemens/procdns/wire"
)

// PipeTransport talks to workers via their standard input and output. Each
// worker process has exactly one channel, sharing the process' ID.
type PipeTransport struct {
	registry
	launcher Launcher
}

var _ Transport = (*PipeTransport)(nil)

// NewPipeTransport returns a new PipeTransport, starting worker processes
// using the specified launcher.
func NewPipeTransport(launcher Launcher) *PipeTransport {
	return &PipeTransport{launcher: launcher}
}

// Open the transport.
func (t *PipeTransport) Open(sink Sink) error {
	t.open(sink)
	return nil
}

// Spawn starts a new worker process that can be talked to immediately.
func (t *PipeTransport) Spawn(proc ID) (ID, bool, error) {
	p, stdin, stdout, err := t.launcher.Launch(nil, true)
	if err != nil {
		return 0, false, err
	}
	t.attach(proc, &pipes{stdin: stdin, stdout: stdout}, stdout)
	t.watch(proc, p)
	return proc, true, nil
}

// Authenticate always fails, as pipe channels are never pending.
func (t *PipeTransport) Authenticate(ch ID, f wire.Frame) (ID, bool) {
	return 0, false
}

// Forget does nothing.
func (t *PipeTransport) Forget(proc ID) {}

// Shutdown terminates all workers.
func (t *PipeTransport) Shutdown() {
	t.shutdown()
}

// pipes closes both standard streams of a worker at once.
type pipes struct {
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (p *pipes) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

func (p *pipes) Close() error {
	err := p.stdin.Close()
	if oerr := p.stdout.Close(); err == nil {
		err = oerr
	}
	return err
}
