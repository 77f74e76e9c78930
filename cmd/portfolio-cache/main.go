package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/portfolio-cache/pkg/config"
	"github.com/Sternrassler/portfolio-cache/pkg/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg      *config.Config
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:           "portfolio-cache",
		Short:         "Portfolio site cache service",
		Long:          "Serve the portfolio content API behind a Redis cache and operate the cache: warm, invalidate, inspect metrics and migrate the content schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.Log.Level = logLevel
			}
			logging.Setup(loaded.LoggingConfig())
			cfg = loaded
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	getConfig := func() *config.Config { return cfg }
	rootCmd.AddCommand(
		serveCmd(getConfig),
		warmCmd(getConfig),
		invalidateCmd(getConfig),
		invalidatePatternCmd(getConfig),
		metricsCmd(),
		migrateCmd(getConfig),
	)

	return rootCmd
}
