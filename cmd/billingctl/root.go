package main

import (
	"fmt"
	"os"

	"go-repair-billing/internal/logger"
	"go-repair-billing/pkg/config"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "billingctl",
	Short: "Operational commands for the repair billing service",
	Long: `billingctl runs maintenance tasks against the billing ledger:
schema migrations and invoice status reconciliation.

It reads the same environment (and optional .env file) as the API server.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var cfg *config.Config

// setup loads configuration and logging before any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return fmt.Errorf("billingctl needs STORE_DRIVER=%s, got %q", config.StoreDriverPostgres, cfg.StoreDriver)
	}

	format, _ := cmd.Flags().GetString("log-format")
	if format == "" {
		format = cfg.LogFormat
	}
	_, err = logger.Setup(logger.LogConfig{Level: cfg.LogLevel, Format: format, Output: os.Stderr})
	return err
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cmdLog := logger.WithComponent("cmd")
		cmdLog.Error().Err(err).Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-format", "", "Log format (json or console), defaults to LOG_FORMAT")
}
