// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/miekg/dns"
	"github.com/siemens/procdns/dig"
	"github.com/siemens/procdns/executor"
	"github.com/siemens/procdns/resolution"
	"github.com/spf13/cobra"
)

func newLookupCmd() *cobra.Command {
	var qtypeName *string
	cmd := &cobra.Command{
		Use:   "lookup [flags] NAME...",
		Short: "look up names using a pool of worker processes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qtype, err := parseQueryType(*qtypeName)
			if err != nil {
				return err
			}
			p, err := newPool(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Stop()
			return lookup(cmd.Context(), cmd.OutOrStdout(), p, args, qtype)
		},
	}
	qtypeName = cmd.Flags().String(
		"type", "A", "record type to look up: A, CNAME, MX, NS, PTR, SOA, or TXT")
	return cmd
}

// parseQueryType returns the record type code for the given record type name.
func parseQueryType(name string) (uint16, error) {
	qtype, ok := dns.StringToType[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("--type: unknown record type %q", name)
	}
	if _, err := resolution.TypeCode(qtype); err != nil {
		return 0, fmt.Errorf("--type: %w", err)
	}
	return qtype, nil
}

// lookup all names at the same time using the specified executor and then
// prints the answers in the order of the names.
func lookup(ctx context.Context, w io.Writer, e executor.Executor, names []string, qtype uint16) error {
	digger, news := dig.New(len(names), e)
	digger.Dig(ctx, names, qtype)
	go digger.StopWait()
	results := map[string]dig.Result{}
	for result := range news {
		results[result.Query.Name] = result
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, name := range names {
		printResult(w, name, results[name])
	}
	return nil
}

// printResult prints the answers found for a name, one per line.
func printResult(w io.Writer, name string, result dig.Result) {
	if result.Err != nil {
		fmt.Fprintf(w, "%s: not found (%s)\n", name, result.Err)
		return
	}
	if result.Msg == nil || len(result.Msg.Answer) == 0 {
		fmt.Fprintf(w, "%s: not found\n", name)
		return
	}
	for _, rr := range result.Msg.Answer {
		fmt.Fprintf(w, "%s: %s\n", name, rdata(rr))
	}
}

// rdata returns the presentation format of a record's data, without its
// header.
func rdata(rr dns.RR) string {
	switch rr := rr.(type) {
	case *dns.A:
		return rr.A.String()
	case *dns.CNAME:
		return "alias for " + strings.TrimSuffix(rr.Target, ".")
	}
	return strings.TrimSpace(strings.TrimPrefix(rr.String(), rr.Header().String()))
}
