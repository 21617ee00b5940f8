package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeffypooo/apptop/internal/apps"
	"github.com/jeffypooo/apptop/internal/bootstrap"
	"github.com/jeffypooo/apptop/internal/config"
	"github.com/jeffypooo/apptop/internal/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		listen     string
		interval   time.Duration
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:           "apptop-server",
		Short:         "Serve the application monitor over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("interval") {
				cfg.Interval = interval
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("APPTOP_CONFIG"), "path to a YAML config file")
	cmd.Flags().StringVar(&listen, "listen", config.DefaultListen, "address to listen on")
	cmd.Flags().DurationVar(&interval, "interval", config.DefaultInterval, "refresh interval")
	cmd.Flags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn, error or off")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	lvl, err := bootstrap.ApplyLogLevel(cfg)
	if err != nil {
		return err
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}

	rt := bootstrap.New(cfg, apps.NewCatalog(apps.DefaultDirs()...))
	defer rt.Close()

	e := newEcho(&server{orch: rt.Orchestrator, host: metrics.NewHostCollector()})
	e.Logger.SetLevel(lvl)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := rt.Orchestrator.Run(ctx, cfg.Interval); err != nil && !errors.Is(err, context.Canceled) {
			e.Logger.Errorf("refresh loop stopped: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// close SSE streams before the server waits on them
		rt.Orchestrator.Close()
		if err := e.Shutdown(shutdownCtx); err != nil {
			e.Logger.Errorf("shutdown: %v", err)
		}
	}()

	if err := e.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
