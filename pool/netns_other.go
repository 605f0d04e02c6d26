// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

//go:build !linux

package pool

import "errors"

// inNetworkNamespace runs fn, as long as no network namespace is specified.
func inNetworkNamespace(netnsref string, fn func() error) error {
	if netnsref != "" {
		return errors.New("network namespaces are only supported on Linux")
	}
	return fn()
}
