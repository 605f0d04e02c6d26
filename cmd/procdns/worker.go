// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"os"

	"github.com/siemens/procdns/worker"
	"github.com/spf13/cobra"
	"github.com/thediveo/lxkns/log"
)

// newWorkerCmd returns the hidden command procdns runs its own worker
// processes with, unless told to use a different worker command.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "serve a pool as one of its worker processes",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if os.Getenv(worker.DebugEnv) != "" {
				log.SetLevel(log.DebugLevel)
			}
			err := worker.New().Run(cmd.Context(),
				worker.FromEnvironment(os.Getenv), cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				log.Errorf("worker %d: %s", os.Getpid(), err)
			}
			return err
		},
	}
}
