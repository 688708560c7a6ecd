package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rental_expiry_monitor/internal/infra/config"
	"rental_expiry_monitor/internal/infra/logger"
)

// cfg is loaded once before any subcommand runs.
var cfg *config.AppConfig

var rootCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Rental expiry monitor",
	Long: `Tracks rental slots kept in a spreadsheet: counts down remaining days, resets expired
slots to a new cycle and notifies operators by email, chat webhook, SMS, Telegram or Pub/Sub.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("could not load application configuration: %w", err)
		}
		logger.Init(cfg)
		logger.Log.Debugf("Configuration loaded. LogLevel: %s, Environment: %s", cfg.LogLevel, cfg.Environment)
		return nil
	},
	// No RunE - defaults to showing help when no subcommand is provided
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(columnsCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
