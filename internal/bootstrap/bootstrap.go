// Package bootstrap wires the collector channel, store, aggregator and
// orchestrator together from a Config.
package bootstrap

import (
	"errors"

	"github.com/labstack/gommon/log"

	"github.com/jeffypooo/apptop/internal/action"
	"github.com/jeffypooo/apptop/internal/apps"
	"github.com/jeffypooo/apptop/internal/config"
	"github.com/jeffypooo/apptop/internal/logging"
	"github.com/jeffypooo/apptop/internal/process"
	"github.com/jeffypooo/apptop/internal/refresh"
	"github.com/jeffypooo/apptop/internal/snapshot"
)

var logger = logging.New("apptop")

// Runtime owns every long-lived component of a monitoring session.
type Runtime struct {
	Config       *config.Config
	Channel      *snapshot.Channel
	Executor     *action.Executor
	Store        *process.Store
	Aggregator   *apps.Aggregator
	Orchestrator *refresh.Orchestrator
}

// New builds a Runtime. Nothing is spawned until the first refresh.
func New(cfg *config.Config, metadata apps.Metadata) *Runtime {
	launcher := cfg.Launcher()
	if launcher.Sandboxed {
		logger.Infof("running sandboxed, helpers at %s", cfg.LibexecDir)
	}

	rt := &Runtime{
		Config:   cfg,
		Channel:  snapshot.NewProcessChannel(launcher, cfg.CollectorPath),
		Executor: action.NewExecutor(launcher, cfg.HelperPath, cfg.Elevation),
		Store:    process.NewStore(process.SystemClock()),
	}
	rt.Aggregator = apps.NewAggregator(metadata, rt.Executor)
	rt.Orchestrator = refresh.New(rt.Channel, rt.Store, rt.Aggregator)
	return rt
}

// Close ends subscriptions and stops the collector.
func (rt *Runtime) Close() error {
	rt.Orchestrator.Close()
	return rt.Channel.Close()
}

// ApplyLogLevel sets the shared log level from the configuration.
func ApplyLogLevel(cfg *config.Config) (log.Lvl, error) {
	lvl, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return lvl, errors.Join(errors.New("invalid log level"), err)
	}
	logging.SetLevel(lvl)
	return lvl, nil
}
