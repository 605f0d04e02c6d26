// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolution

import "errors"

var (
	// ErrUnknownQueryType is returned for queries whose record type cannot be
	// passed to workers.
	ErrUnknownQueryType = errors.New("unknown query type")
	// ErrUnknownClass is returned for answers not in the Internet class.
	ErrUnknownClass = errors.New("unknown class")
	// ErrUnknownType is returned for answers with an unknown record type.
	ErrUnknownType = errors.New("unknown type")
	// ErrUnsupportedData is returned for answers whose data cannot be
	// extracted.
	ErrUnsupportedData = errors.New("unsupported answer data")
	// ErrNoDetail rejects requests whose worker failed without telling why.
	ErrNoDetail = errors.New("worker failed without reason")
)

// WorkerError is a resolution failure reported by a worker.
type WorkerError struct {
	Reason string
}

// Error returns the reason as reported by the worker.
func (e *WorkerError) Error() string {
	return "worker failed: " + e.Reason
}
