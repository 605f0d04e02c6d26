// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/miekg/dns"
	"github.com/siemens/procdns/worker"
	"github.com/spf13/cobra"
)

func newDirectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "direct NAME...",
		Short: "look up addresses in this process, without any worker processes",
		Long: "direct looks up the IPv4 addresses of names one after another in this " +
			"very process, blocking while the system resolver is busy. Use it to " +
			"compare with the lookup command.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return direct(cmd.Context(), cmd.OutOrStdout(), worker.New(), args)
		},
	}
}

// direct looks up the address records owned by the specified names, printing
// only the addresses of the names themselves but not of any aliases.
func direct(ctx context.Context, w io.Writer, wrk *worker.Worker, names []string) error {
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		answers, err := wrk.Query(ctx, name, dns.TypeA)
		if err != nil {
			fmt.Fprintf(w, "%s: not found (%s)\n", name, err)
			continue
		}
		found := false
		for _, answer := range answers {
			if answer.Type != "A" || answer.Host != name {
				continue
			}
			fmt.Fprintf(w, "%s: %s\n", name, answer.IP)
			found = true
		}
		if !found {
			fmt.Fprintf(w, "%s: not found\n", name)
		}
	}
	return nil
}
