// Package cli implements the clickmarket command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/clickmarket/marketplace/internal/config"
	"github.com/clickmarket/marketplace/internal/pkg/telemetry"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command for the clickmarket CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "clickmarket",
		Short: "ClickMarket order lifecycle service",
		Long: `ClickMarket runs the order, payment, invoice and delivery lifecycle
behind a REST API, with a checkout coordinator that rolls back on failure.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))

	return cmd
}

// load reads the configuration and installs the global logger.
func (o *RootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Telemetry.LogLevel
	if o.Verbose {
		level = "debug"
	}
	telemetry.InitLogger(level)
	return cfg, nil
}
