package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aigoflow/catdog-classifier/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "catdog",
		Short:         "Cat/dog image classification service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "Optional .env file to load")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return nil, err
		}
		setupLogging(cfg)
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		newMetricsCmd(load),
		newFeedbackCmd(load),
		newTokenCmd(load),
	)
	return root
}

func setupLogging(cfg *config.Config) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
}
