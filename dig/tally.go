// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dig

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// Outcome is the latest lookup outcome for a single name.
type Outcome struct {
	Name      string
	Addresses []string      // IP addresses found, in answer order.
	Aliases   []string      // CNAME targets found, in answer order.
	Err       error         // reason of the latest lookup failure.
	Lookups   int           // number of lookups of this name so far.
	Took      time.Duration // duration of the latest lookup.
}

// Tally keeps track of lookup outcomes, as streamed by a Digger. A Tally is
// safe for concurrent use.
type Tally struct {
	mu       sync.Mutex
	m        map[string]*Outcome
	ok, fail int
}

// NewTally returns a new and properly initialized Tally.
func NewTally() *Tally {
	return &Tally{
		m: map[string]*Outcome{},
	}
}

// Update the tally with a lookup result.
func (t *Tally) Update(r Result) {
	name := r.Query.Name
	if name == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	outcome, ok := t.m[name]
	if !ok {
		outcome = &Outcome{Name: name}
		t.m[name] = outcome
	}
	outcome.Lookups++
	outcome.Took = r.Took
	if r.Err != nil {
		t.fail++
		outcome.Err = r.Err
		return
	}
	t.ok++
	outcome.Err = nil
	outcome.Addresses = []string{}
	outcome.Aliases = []string{}
	if r.Msg == nil {
		return
	}
	for _, rr := range r.Msg.Answer {
		switch rr := rr.(type) {
		case *dns.A:
			outcome.Addresses = append(outcome.Addresses, rr.A.String())
		case *dns.CNAME:
			outcome.Aliases = append(outcome.Aliases, rr.Target)
		}
	}
}

// Get returns the outcomes of all names, sorted by name.
func (t *Tally) Get() []Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	outcomes := make([]Outcome, 0, len(t.m))
	for _, outcome := range t.m {
		outcomes = append(outcomes, *outcome)
	}
	sort.Slice(outcomes, func(a, b int) bool {
		return outcomes[a].Name < outcomes[b].Name
	})
	return outcomes
}

// Counts returns the number of successful and failed lookups so far.
func (t *Tally) Counts() (ok int, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ok, t.fail
}

// Track results received from the specified news channel until the channel is
// closed or the context done. Track only returns after processing all results
// or when the context is done.
func (t *Tally) Track(ctx context.Context, news <-chan Result) error {
	for {
		select {
		case r, ok := <-news:
			if !ok {
				return nil
			}
			t.Update(r)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
