package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jeffypooo/apptop/internal/action"
	"github.com/jeffypooo/apptop/internal/apps"
	"github.com/jeffypooo/apptop/internal/bootstrap"
	"github.com/jeffypooo/apptop/internal/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "apptop",
		Short:         "Monitor and control running applications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("APPTOP_CONFIG"), "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn, error or off")

	root.AddCommand(newListCmd(opts))
	root.AddCommand(newInfoCmd(opts))
	for _, a := range action.All() {
		root.AddCommand(newActionCmd(opts, a))
	}
	return root
}

// runtime loads the configuration and builds a Runtime for one command.
func (o *rootOptions) runtime(cmd *cobra.Command) (*bootstrap.Runtime, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if _, err := bootstrap.ApplyLogLevel(cfg); err != nil {
		return nil, err
	}
	return bootstrap.New(cfg, apps.NewCatalog(apps.DefaultDirs()...)), nil
}
