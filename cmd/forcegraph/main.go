package main

import (
	"fmt"
	"os"

	"github.com/ritzau/forcegraph/pkg/config"
	"github.com/ritzau/forcegraph/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "forcegraph",
		Short:        "Live force-directed graph views of dependencies and traced variables",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", config.DefaultFile, "config file (TOML)")
	root.PersistentFlags().StringP("verbosity", "v", "info", "log level: trace, debug, info, warn, error")
	root.PersistentFlags().Int("width", 800, "surface width in pixels")
	root.PersistentFlags().Int("height", 600, "surface height in pixels")
	root.PersistentFlags().String("simulator", "integrator", "layout simulator: integrator or eades")

	root.AddCommand(newServeCmd())
	root.AddCommand(newRenderCmd())
	return root
}

// loadConfig reads configuration with cmd's flags on top and sets up logging
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Verbosity)
	if err != nil {
		return nil, err
	}
	if err := logging.Configure(os.Stderr, level, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}
	return cfg, nil
}
