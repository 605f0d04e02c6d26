// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/gosuri/uilive"
	"github.com/siemens/procdns/dig"
	"github.com/siemens/procdns/executor"
	"github.com/siemens/procdns/mobynet"
	"github.com/spf13/cobra"
	"github.com/thediveo/lxkns/log"
)

// defaultBulkNames are looked up when neither names nor a container have been
// specified.
var defaultBulkNames = []string{
	"localhost",
	"example.com",
	"example.net",
	"example.org",
	"www.example.com",
	"iana.org",
	"www.iana.org",
	"nic.de",
	"doesnotexist.invalid",
	"127.0.0.1",
}

// bulkOptions control a bulk run.
type bulkOptions struct {
	Rounds          int
	Count           int           // lookups per round.
	Concurrency     int           // maximum lookups in flight.
	Pause           time.Duration // between rounds.
	Refresh         time.Duration // display refresh interval.
	SpinnerInterval time.Duration
	Indentation     int
	QType           uint16
}

func newBulkCmd() *cobra.Command {
	var (
		rounds, count, concurrency *uint
		pause, refresh, spin       *time.Duration
		indentation                *uint
		qtypeName                  *string
	)
	cmd := &cobra.Command{
		Use:   "bulk [flags] [NAME...]",
		Short: "look up lots of randomly picked names in rounds",
		Long: "bulk looks up randomly picked names in rounds, showing the latest outcome " +
			"per name. Without any names and with --container, bulk picks from the " +
			"DNS names of the containers on the networks attached to this container.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *rounds < 1 {
				return fmt.Errorf("--rounds must be at least 1")
			}
			if *count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			if *concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1")
			}
			qtype, err := parseQueryType(*qtypeName)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			names, err := bulkNames(ctx, args)
			if err != nil {
				return err
			}
			p, err := newPool(ctx)
			if err != nil {
				return err
			}
			defer p.Stop()
			return bulk(ctx, cmd.OutOrStdout(), p, names, bulkOptions{
				Rounds:          int(*rounds),
				Count:           int(*count),
				Concurrency:     int(*concurrency),
				Pause:           *pause,
				Refresh:         *refresh,
				SpinnerInterval: *spin,
				Indentation:     int(*indentation),
				QType:           qtype,
			})
		},
	}
	rounds = cmd.Flags().Uint("rounds", 1, "number of rounds")
	count = cmd.Flags().Uint("count", 200, "number of lookups per round")
	concurrency = cmd.Flags().Uint("concurrency", 64, "maximum number of lookups in flight")
	pause = cmd.Flags().Duration("pause", time.Second, "pause between rounds")
	refresh = cmd.Flags().Duration("refresh", 20*time.Millisecond, "display refresh interval")
	spin = cmd.Flags().Duration("spinner", 100*time.Millisecond, "spinner interval")
	indentation = cmd.Flags().Uint("indentation", 2, "indentation of the per-name outcomes")
	qtypeName = cmd.Flags().String("type", "A", "record type to look up")
	return cmd
}

// bulkNames returns the names to pick from: either the explicitly specified
// names, the names on the networks of the container to resolve from, or the
// default names.
func bulkNames(ctx context.Context, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if *containerName == "" {
		return defaultBulkNames, nil
	}
	cln, err := mobynet.NewClient("")
	if err != nil {
		return nil, err
	}
	defer cln.Close()
	nets, err := mobynet.AttachedNetworks(ctx, cln, *containerName)
	if err != nil {
		return nil, fmt.Errorf("cannot discover names around container %s: %w", *containerName, err)
	}
	names := mobynet.Names(nets)
	if len(names) == 0 {
		return nil, fmt.Errorf("container %s has no DNS names around it", *containerName)
	}
	return names, nil
}

// pick returns count names randomly picked from names.
func pick(rnd *rand.Rand, names []string, count int) []string {
	picks := make([]string, count)
	for idx := range picks {
		picks[idx] = names[rnd.Intn(len(names))]
	}
	return picks
}

// bulk runs the specified number of lookup rounds using the specified executor,
// rendering the progress and outcomes live to w.
func bulk(ctx context.Context, w io.Writer, e executor.Executor, names []string, opts bulkOptions) error {
	tally := dig.NewTally()
	var mu sync.Mutex
	state := progress{Rounds: opts.Rounds}
	current := func() progress {
		mu.Lock()
		defer mu.Unlock()
		return state
	}

	// As with uilive's own background updating there's the risk of flushing
	// a half-rendered display, we render and then explicitly flush.
	bulkDone := make(chan struct{})
	renderingDone := make(chan struct{})
	go func() {
		term := uilive.New()
		term.Out = w
		renderer := newRenderer(term, opts.SpinnerInterval)
		renderer.Indentation = opts.Indentation
		render := func() {
			ok, failed := tally.Counts()
			renderer.Render(current(), ok, failed, tally.Get())
			_ = term.Flush()
		}
		defer func() {
			render()
			close(renderingDone)
		}()
		ticker := time.NewTicker(opts.Refresh)
		defer ticker.Stop()
		render()
		for {
			select {
			case <-ticker.C:
				render()
			case <-bulkDone:
				return
			}
		}
	}()

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	err := func() error {
		for round := 1; round <= opts.Rounds; round++ {
			mu.Lock()
			state.Round = round
			mu.Unlock()
			log.Debugf("bulk round %d/%d", round, opts.Rounds)
			digger, news := dig.New(opts.Concurrency, e)
			tracked := make(chan struct{})
			go func() {
				_ = tally.Track(context.Background(), news)
				close(tracked)
			}()
			digger.Dig(ctx, pick(rnd, names, opts.Count), opts.QType)
			digger.StopWait()
			<-tracked
			if err := ctx.Err(); err != nil {
				return err
			}
			if round == opts.Rounds {
				break
			}
			select {
			case <-time.After(opts.Pause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}()
	mu.Lock()
	state.Done = true
	mu.Unlock()
	close(bulkDone)
	<-renderingDone
	return err
}
