// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

//go:build linux

package pool

import (
	"github.com/thediveo/lxkns/ops"
	"github.com/thediveo/lxkns/species"
)

// inNetworkNamespace runs fn in the network namespace referenced by the
// specified path; in the caller's network namespace if the path is empty.
// Processes started and sockets created by fn stay attached to that network
// namespace.
func inNetworkNamespace(netnsref string, fn func() error) error {
	if netnsref == "" {
		return fn()
	}
	// lxkns' ops.Execute differentiates between a namespace switching error
	// and the result of the function called in the switched namespace.
	res, err := ops.Execute(func() interface{} {
		return fn()
	}, ops.NewTypedNamespacePath(netnsref, species.CLONE_NEWNET))
	if err != nil {
		return err
	}
	if fnerr, ok := res.(error); ok {
		return fnerr
	}
	return nil
}
