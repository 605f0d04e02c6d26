// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/siemens/procdns/executor"
	"github.com/siemens/procdns/mobynet"
	"github.com/siemens/procdns/pool"
	"github.com/siemens/procdns/worker"
	"github.com/spf13/cobra"
	"github.com/thediveo/lxkns/log"
)

var (
	debug         *bool
	workerNumber  *uint
	transportName *string
	workerCmd     *string
	containerName *string
	netnsPath     *string
	maxRetries    *uint
)

func newRootCmd() (rootCmd *cobra.Command) {
	rootCmd = &cobra.Command{
		Use:          "procdns",
		Short:        "procdns resolves names using a pool of worker processes",
		Version:      "0.9",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if *workerNumber < 1 || *workerNumber > 64 {
				return fmt.Errorf("--workers out of range [1..64]")
			}
			if _, err := executor.ParseTransportKind(*transportName); err != nil {
				return fmt.Errorf("--transport: %w", err)
			}
			if *containerName != "" && *netnsPath != "" {
				return fmt.Errorf("--container and --netns are mutually exclusive")
			}
			if *debug {
				log.SetLevel(log.DebugLevel)
				log.Debugf("debug logging enabled")
				// ...and pass it on to the workers.
				_ = os.Setenv(worker.DebugEnv, "1")
			}
			return nil
		},
	}
	// Sets up the flags.
	debug = rootCmd.PersistentFlags().Bool(
		"debug", false, "enable debugging output")
	workerNumber = rootCmd.PersistentFlags().Uint(
		"workers", 4, "number of worker processes")
	transportName = rootCmd.PersistentFlags().String(
		"transport", string(executor.AutoTransport), "how to talk to workers: auto, pipe, or socket")
	workerCmd = rootCmd.PersistentFlags().String(
		"worker-cmd", "", "command running a worker process (default: this binary)")
	containerName = rootCmd.PersistentFlags().String(
		"container", "", "resolve from inside the network namespace of this Docker container")
	netnsPath = rootCmd.PersistentFlags().String(
		"netns", "", "resolve from inside the network namespace referenced by this path")
	maxRetries = rootCmd.PersistentFlags().Uint(
		"retries", 0, "maximum retries of a lookup after its worker failed (0: unlimited)")

	rootCmd.AddCommand(
		newLookupCmd(),
		newBulkCmd(),
		newDirectCmd(),
		newWorkerCmd(),
	)
	return
}

// workerCommand returns the command line to run worker processes with.
func workerCommand() ([]string, error) {
	if cmdline := strings.Fields(*workerCmd); len(cmdline) > 0 {
		// The pool keeps respawning workers it cannot launch, so better check
		// up front.
		if _, err := exec.LookPath(cmdline[0]); err != nil {
			return nil, fmt.Errorf("invalid worker command: %w", err)
		}
		return cmdline, nil
	}
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("cannot determine worker command: %w", err)
	}
	return []string{self, "worker"}, nil
}

// networkNamespace returns the path of the network namespace to resolve
// names in, or "" for the current network namespace.
func networkNamespace(ctx context.Context) (string, error) {
	if *containerName == "" {
		return *netnsPath, nil
	}
	cln, err := mobynet.NewClient("")
	if err != nil {
		return "", err
	}
	defer cln.Close()
	return mobynet.NetnsOf(ctx, cln, *containerName)
}

// newPool returns a started pool of worker processes, as configured by the
// command line flags.
func newPool(ctx context.Context) (*pool.Pool, error) {
	kind, _ := executor.ParseTransportKind(*transportName)
	cmdline, err := workerCommand()
	if err != nil {
		return nil, err
	}
	netnsref, err := networkNamespace(ctx)
	if err != nil {
		return nil, err
	}
	options := []executor.FactoryOption{
		executor.WithSize(int(*workerNumber)),
		executor.WithTransport(kind),
		executor.WithWorkerCommand(cmdline...),
		executor.WithMaxRetries(int(*maxRetries)),
	}
	if netnsref != "" {
		options = append(options, executor.InNetworkNamespace(netnsref))
	}
	p, err := executor.NewFactory(options...).CreateExecutor()
	if err != nil {
		return nil, fmt.Errorf("cannot start worker pool: %w", err)
	}
	log.Debugf("started pool of %d workers", p.Size())
	return p, nil
}
