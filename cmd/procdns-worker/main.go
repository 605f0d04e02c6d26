// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// procdns-worker resolves names on behalf of a procdns pool, reading requests
// from its standard input and writing replies to its standard output. When
// started with PROCDNS_WORKER_PORT set, it instead connects back to the pool
// on that loopback port and authenticates using PROCDNS_WORKER_COOKIE.
package main

import (
	"context"
	"os"

	"github.com/siemens/procdns/worker"
	"github.com/thediveo/lxkns/log"
)

func main() {
	osExit(run(context.Background(), os.Getenv))
}

// run a worker until the pool hangs up, returning the exit code.
func run(ctx context.Context, getenv func(string) string) int {
	if getenv(worker.DebugEnv) != "" {
		log.SetLevel(log.DebugLevel)
	}
	if err := worker.New().Run(ctx, worker.FromEnvironment(getenv), os.Stdin, os.Stdout); err != nil {
		log.Errorf("procdns-worker: %s", err.Error())
		return 1
	}
	return 0
}

// For CLI unit tests...
var osExit = os.Exit
