// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package executor

import (
	"context"

	"github.com/miekg/dns"
	"github.com/siemens/procdns/pool"
	"github.com/siemens/procdns/resolution"
	"github.com/siemens/procdns/types"
)

// Executor resolves a query, returning a DNS message with the query as its
// only question and the answers found.
type Executor interface {
	Query(ctx context.Context, nameserver string, q types.Query) (*dns.Msg, error)
}

var _ Executor = (*pool.Pool)(nil)

// ProcessExecutor resolves queries by sending them to a pool of worker
// processes, or anything else accepting requests.
type ProcessExecutor struct {
	sender resolution.Sender
}

var _ Executor = (*ProcessExecutor)(nil)

// NewProcessExecutor returns a new ProcessExecutor sending its requests to the
// specified Sender.
func NewProcessExecutor(s resolution.Sender) *ProcessExecutor {
	return &ProcessExecutor{sender: s}
}

// Query resolves the specified query. The nameserver is ignored, as the
// resolution is always done by the operating system's resolver.
func (e *ProcessExecutor) Query(ctx context.Context, nameserver string, q types.Query) (*dns.Msg, error) {
	return resolution.Exchange(ctx, e.sender, q)
}
