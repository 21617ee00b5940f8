package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeffypooo/apptop/internal/action"
	"github.com/jeffypooo/apptop/internal/apps"
	"github.com/jeffypooo/apptop/internal/web"
)

var actionShort = [...]string{
	action.Terminate: "End an application (SIGTERM to every process)",
	action.Stop:      "Halt an application (SIGSTOP)",
	action.Kill:      "Kill an application (SIGKILL)",
	action.Continue:  "Continue a halted application (SIGCONT)",
}

func newActionCmd(opts *rootOptions, a action.Action) *cobra.Command {
	return &cobra.Command{
		Use:   web.ActionVerb(a) + " <app-id>",
		Short: actionShort[a],
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.Orchestrator.Refresh(); err != nil {
				return err
			}
			app, err := rt.Orchestrator.Resolve(web.IDFromKey(args[0]))
			if err != nil {
				return err
			}
			if app.IsSystem() {
				return apps.ErrSystemBucket
			}

			o := apps.Tally(app, a, app.Do(a))
			fmt.Println(o.Message())
			if !o.OK() {
				for _, err := range o.Errors {
					_, _ = fmt.Fprintln(os.Stderr, err)
				}
				return errors.New("some processes could not be " + a.Past())
			}
			return nil
		},
	}
}
