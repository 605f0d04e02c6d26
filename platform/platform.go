// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package platform

import (
	"runtime"
	"strings"
)

// goos is the operating system we're running on; overridden in unit tests.
var goos = runtime.GOOS

// IsWindows returns true when running on any flavour of Windows.
func IsWindows() bool {
	return strings.HasPrefix(strings.ToLower(goos), "win")
}

// HasAsyncPipes returns true if the platform supports asynchronous I/O on
// pipes to child processes, so that workers can be talked to via their
// standard input and output.
func HasAsyncPipes() bool {
	return !IsWindows()
}
