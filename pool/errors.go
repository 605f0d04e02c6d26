// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package pool

import "errors"

var (
	// ErrInvalidSize is returned when creating a pool with fewer than one
	// worker.
	ErrInvalidSize = errors.New("invalid pool size")
	// ErrAlreadyRunning is returned when starting a pool that already runs.
	ErrAlreadyRunning = errors.New("pool already running")
	// ErrNotRunning rejects requests sent to a pool that isn't running.
	ErrNotRunning = errors.New("pool not running")
	// ErrStopped rejects requests still pending when the pool gets stopped.
	ErrStopped = errors.New("pool stopped")
	// ErrRetriesExhausted rejects requests that failed on too many workers.
	ErrRetriesExhausted = errors.New("retries exhausted")
)
