// Command apptop-processes is the privileged collector. It answers every
// trigger byte on stdin with one framed snapshot on stdout and exits when
// stdin closes.
package main

import (
	"context"
	"os"

	"github.com/labstack/gommon/log"

	"github.com/jeffypooo/apptop/internal/collector"
	"github.com/jeffypooo/apptop/internal/logging"
	"github.com/jeffypooo/apptop/internal/process"
	"github.com/jeffypooo/apptop/internal/snapshot"
)

func main() {
	// stdout carries the protocol; logs go to stderr
	logging.SetOutput(os.Stderr)
	if lvl, err := logging.ParseLevel(os.Getenv("APPTOP_LOG_LEVEL")); err == nil {
		logging.SetLevel(lvl)
	}

	c := collector.New(process.SystemClock().TickRate)
	ctx := context.Background()

	err := snapshot.Serve(os.Stdin, os.Stdout, func() ([]snapshot.Sample, error) {
		return c.Sample(ctx)
	})
	if err != nil {
		log.Fatalf("collector: %v", err)
	}
}
