// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import "fmt"

// State is the life cycle state of a worker handle.
type State int

// The states of a worker handle.
const (
	Spawning       State = iota // process launched, channel not yet usable.
	Authenticating              // connected back, but cookie not yet presented.
	Available                   // idle and ready to take a request.
	Busy                        // exactly one request attached.
	Dead                        // exited, closed, or despawned.
)

// String returns the clear-text representation of a State value.
func (s State) String() string {
	switch s {
	case Spawning:
		return "spawning"
	case Authenticating:
		return "authenticating"
	case Available:
		return "available"
	case Busy:
		return "busy"
	case Dead:
		return "dead"
	}
	return fmt.Sprintf("State(%d)", s)
}

// IsUsable returns true if a worker in this state may get requests attached
// now or later on.
func (s State) IsUsable() bool {
	switch s {
	case Available, Busy:
		return true
	default:
		return false
	}
}
