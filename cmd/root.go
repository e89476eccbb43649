package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keirinlab/keirin-cli/internal/config"
)

var cfg *config.Config

// exitCode lets subcommands signal a non-zero exit without bypassing the
// PostRun logger flush. Execute errors always exit 1.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "keirin-cli",
	Short: "Keirin racing data ingester",
	Long:  "Fetches keirin race cards, odds and results from the Winticket API and yen-joy.net, normalizes them into partitioned SQLite stores, and serves the consolidated data over HTTP.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}
