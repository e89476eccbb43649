package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/keirinlab/keirin-cli/internal/store"
)

var statusRuns int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stage progress and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tracker, err := store.OpenStatus(cfg.Store.DataDir)
		if err != nil {
			return err
		}
		defer tracker.Close()

		stages, runs, err := tracker.Summary(ctx, statusRuns)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Stages []store.StageCounts `json:"stages"`
			Runs   []store.RunInfo     `json:"recent_runs"`
		}{Stages: stages, Runs: runs})
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusRuns, "runs", 10, "number of recent runs to show")

	rootCmd.AddCommand(statusCmd)
}
