package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeffypooo/apptop/internal/apps"
	"github.com/jeffypooo/apptop/internal/refresh"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		watch  bool
		asJSON bool
		warmup time.Duration
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List running applications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			// rates need two samples
			if _, err := rt.Orchestrator.Refresh(); err != nil {
				return err
			}

			if !watch {
				time.Sleep(warmup)
				ev, err := rt.Orchestrator.Refresh()
				if err != nil {
					return err
				}
				return printSummaries(os.Stdout, ev.Summaries, asJSON)
			}
			return watchSummaries(cmd, rt.Orchestrator, rt.Config.Interval, asJSON)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "refresh continuously")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().DurationVar(&warmup, "sample", time.Second, "time between the two samples used for rates")
	return cmd
}

func watchSummaries(cmd *cobra.Command, orch *refresh.Orchestrator, interval time.Duration, asJSON bool) error {
	events := orch.Subscribe()
	defer orch.Unsubscribe(events)

	restore := enableSingleView()
	defer restore()

	ctx := cmd.Context()
	go orch.Run(ctx, interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Failed() {
				fmt.Fprintf(os.Stderr, "Refresh failed: %v\n", ev.Err)
				continue
			}
			clearScreen()
			if err := printSummaries(os.Stdout, ev.Summaries, asJSON); err != nil {
				return err
			}
		}
	}
}

func printSummaries(w io.Writer, summaries []apps.DisplaySummary, asJSON bool) error {
	if asJSON {
		out, err := json.MarshalIndent(summaries, "", " ")
		if err != nil {
			return fmt.Errorf("error marshalling summaries: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}
	printSummaryTable(w, summaries)
	return nil
}

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}

// enableSingleView switches a terminal to the alternate buffer for --watch.
func enableSingleView() func() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return func() {}
	}
	fmt.Print("\033[?1049h") // switch to alternate buffer
	fmt.Print("\033[?25l")   // hide cursor
	return func() {
		fmt.Print("\033[?25h")   // show cursor
		fmt.Print("\033[?1049l") // restore main buffer
	}
}
