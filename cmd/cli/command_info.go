package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeffypooo/apptop/internal/apps"
	"github.com/jeffypooo/apptop/internal/metrics"
	"github.com/jeffypooo/apptop/internal/refresh"
	"github.com/jeffypooo/apptop/internal/web"
)

func newInfoCmd(opts *rootOptions) *cobra.Command {
	var (
		watch  bool
		asJSON bool
		warmup time.Duration
	)
	cmd := &cobra.Command{
		Use:   "info <app-id>",
		Short: "Show every process of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boot, err := metrics.NewHostCollector().BootTime(cmd.Context())
			if err != nil {
				return err
			}
			rt, err := opts.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			id := web.IDFromKey(args[0])
			if _, err := rt.Orchestrator.Refresh(); err != nil {
				return err
			}
			if !watch {
				time.Sleep(warmup)
				if _, err := rt.Orchestrator.Refresh(); err != nil {
					return err
				}
				app, err := rt.Orchestrator.Resolve(id)
				if err != nil {
					return err
				}
				return printAppInfo(os.Stdout, app.Info(boot), asJSON)
			}
			return watchInfo(cmd, rt.Orchestrator, rt.Config.Interval, id, boot, asJSON)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "refresh continuously")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().DurationVar(&warmup, "sample", time.Second, "time between the two samples used for rates")
	return cmd
}

func watchInfo(cmd *cobra.Command, orch *refresh.Orchestrator, interval time.Duration, id string, boot time.Time, asJSON bool) error {
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
			// the application may have exited since the last cycle
			app, err := orch.Resolve(id)
			if err != nil {
				return err
			}
			clearScreen()
			if err := printAppInfo(os.Stdout, app.Info(boot), asJSON); err != nil {
				return err
			}
		}
	}
}

func printAppInfo(w io.Writer, info apps.Info, asJSON bool) error {
	if asJSON {
		out, err := json.MarshalIndent(info, "", " ")
		if err != nil {
			return fmt.Errorf("error marshalling application info: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}
	printInfo(w, info)
	return nil
}
