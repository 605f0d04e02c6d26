// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package executor

import (
	"fmt"
	"strings"

	"github.com/siemens/procdns/platform"
	"github.com/siemens/procdns/pool"
)

// DefaultSize is the number of worker processes when not told otherwise.
const DefaultSize = 1

// TransportKind selects how a pool talks to its workers.
type TransportKind string

// The transports to choose from.
const (
	AutoTransport   TransportKind = "auto"   // best for this platform.
	PipeTransport   TransportKind = "pipe"   // standard input and output.
	SocketTransport TransportKind = "socket" // loopback TCP connections.
)

// ParseTransportKind returns the transport kind of the specified name.
func ParseTransportKind(name string) (TransportKind, error) {
	switch kind := TransportKind(strings.ToLower(name)); kind {
	case AutoTransport, PipeTransport, SocketTransport:
		return kind, nil
	}
	return "", fmt.Errorf("unknown transport %q, must be auto, pipe, or socket", name)
}

// Factory creates pools of worker processes.
type Factory struct {
	size       int
	command    []string
	transport  TransportKind
	netns      string
	maxRetries int
	launcher   pool.Launcher
}

// FactoryOption can be passed to NewFactory when creating new Factory
// objects.
type FactoryOption func(*Factory)

// NewFactory returns a new Factory, configured by the specified options.
func NewFactory(options ...FactoryOption) *Factory {
	f := &Factory{
		size:      DefaultSize,
		command:   []string{pool.DefaultWorkerCommand},
		transport: AutoTransport,
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// WithSize sets the number of worker processes of the pools created.
func WithSize(size int) FactoryOption {
	return func(f *Factory) {
		f.size = size
	}
}

// WithWorkerCommand sets the command, with optional arguments, to run worker
// processes.
func WithWorkerCommand(command ...string) FactoryOption {
	return func(f *Factory) {
		f.command = command
	}
}

// WithTransport selects how pools talk to their workers.
func WithTransport(kind TransportKind) FactoryOption {
	return func(f *Factory) {
		f.transport = kind
	}
}

// InNetworkNamespace optionally runs the worker processes inside the network
// namespace referenced by the specified filesystem path, such as
// "/proc/666/ns/net".
func InNetworkNamespace(netnsref string) FactoryOption {
	return func(f *Factory) {
		f.netns = netnsref
	}
}

// WithMaxRetries limits how often a request is retried on another worker.
func WithMaxRetries(n int) FactoryOption {
	return func(f *Factory) {
		f.maxRetries = n
	}
}

// WithLauncher sets the launcher for worker processes, overriding the worker
// command and network namespace.
func WithLauncher(l pool.Launcher) FactoryOption {
	return func(f *Factory) {
		f.launcher = l
	}
}

// Kind returns the transport kind the pools get created with, resolving
// AutoTransport for the platform.
func (f *Factory) Kind() TransportKind {
	if f.transport != AutoTransport {
		return f.transport
	}
	if platform.HasAsyncPipes() {
		return PipeTransport
	}
	return SocketTransport
}

// Transport returns a new transport of the configured kind.
func (f *Factory) Transport() pool.Transport {
	launcher, netns := f.launcher, ""
	if launcher == nil {
		launcher, netns = &pool.ExecLauncher{Command: f.command, Netns: f.netns}, f.netns
	}
	if f.Kind() == SocketTransport {
		return pool.NewSocketTransport(launcher, pool.ListenInNetworkNamespace(netns))
	}
	return pool.NewPipeTransport(launcher)
}

// CreateExecutor returns a new and already started pool.
func (f *Factory) CreateExecutor() (*pool.Pool, error) {
	p, err := pool.New(f.size, f.Transport(), pool.WithMaxRetries(f.maxRetries))
	if err != nil {
		return nil, err
	}
	if err := p.Start(); err != nil {
		return nil, err
	}
	return p, nil
}
