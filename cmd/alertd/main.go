package main

import (
	"fmt"
	"os"

	"portfolio-alerts/internal/cli"
	"portfolio-alerts/internal/config"
	"portfolio-alerts/internal/logging"
)

func main() {
	configDir := os.Getenv("ALERTD_CONFIG_DIR")

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "alertd: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logging)

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
