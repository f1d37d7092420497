package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oblongtable/beanbag-client/internal/config"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log := buildLogger(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	rootCmd := &cobra.Command{
		Use:           "beanbag",
		Short:         "Terminal client for beanbag multiplayer quizzes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		hostCmd(cfg, log),
		joinCmd(cfg, log),
		serveCmd(cfg, log),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func buildLogger(level string) *zap.Logger {
	if level == "debug" {
		log, err := zap.NewDevelopment()
		if err != nil {
			return zap.NewNop()
		}
		return log
	}
	log, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
