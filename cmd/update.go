package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keirinlab/keirin-cli/internal/pipeline"
	"github.com/keirinlab/keirin-cli/internal/source"
	"github.com/keirinlab/keirin-cli/internal/stage"
	"github.com/keirinlab/keirin-cli/internal/store"
)

var (
	updateMode    string
	updateDate    string
	updateFrom    string
	updateTo      string
	updateStages  string
	updateVenues  []string
	updateForce   bool
	updateDryRun  bool
	updateWorkers int
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch and store racing data for a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mode, err := pipeline.ParseMode(updateMode)
		if err != nil {
			return err
		}
		stages, err := stage.ParseStages(updateStages)
		if err != nil {
			return err
		}

		aliases, err := source.LoadVenueAliases(cfg.Yenjoy.VenueAliasPath)
		if err != nil {
			return err
		}

		tracker, err := store.OpenStatus(cfg.Store.DataDir)
		if err != nil {
			return err
		}
		defer tracker.Close()

		api := source.NewWinticketClient(source.WinticketOptions{
			BaseURL:    cfg.Winticket.BaseURL,
			Timeout:    time.Duration(cfg.Winticket.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Winticket.MaxRetries,
			RatePerSec: cfg.Winticket.RatePerSec,
			Burst:      cfg.Winticket.Burst,
		})
		scraper := source.NewYenjoyClient(source.YenjoyOptions{
			BaseURL:    cfg.Yenjoy.BaseURL,
			UserAgent:  cfg.Yenjoy.UserAgent,
			Timeout:    time.Duration(cfg.Yenjoy.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Yenjoy.MaxRetries,
			RatePerSec: cfg.Yenjoy.RatePerSec,
		})

		workers := updateWorkers
		if workers == 0 {
			workers = cfg.Update.MaxWorkers
		}

		orch := &pipeline.Orchestrator{
			API:          api,
			Scraper:      scraper,
			Aliases:      aliases,
			Tracker:      tracker,
			DataDir:      cfg.Store.DataDir,
			Workers:      workers,
			HistoryStart: cfg.Update.HistoryStart,
		}

		sum, err := orch.Run(ctx, pipeline.Options{
			Mode:   mode,
			Date:   updateDate,
			From:   updateFrom,
			To:     updateTo,
			Stages: stages,
			Venues: updateVenues,
			Force:  updateForce,
			DryRun: updateDryRun,
		})
		if err != nil {
			return eris.Wrap(err, "update run")
		}

		zap.L().Info("update complete",
			zap.String("run_id", sum.RunID),
			zap.String("from", sum.From),
			zap.String("to", sum.To),
			zap.Bool("dry_run", sum.DryRun),
			zap.String("stages", sum.String()),
		)

		if sum.Failed() > 0 {
			exitCode = 2
		}

		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateMode, "mode", string(pipeline.ModeSingleDay), "run mode: single-day, period, full-history")
	updateCmd.Flags().StringVar(&updateDate, "date", "", "single-day target date (YYYY-MM-DD, default today)")
	updateCmd.Flags().StringVar(&updateFrom, "from", "", "period start date (YYYY-MM-DD)")
	updateCmd.Flags().StringVar(&updateTo, "to", "", "period end date (YYYY-MM-DD)")
	updateCmd.Flags().StringVar(&updateStages, "stages", "all", "stages to run, e.g. 1-3 or 1,4,5")
	updateCmd.Flags().StringSliceVar(&updateVenues, "venue", nil, "restrict to venue ids or JKA codes")
	updateCmd.Flags().BoolVar(&updateForce, "force", false, "refetch scopes already marked done")
	updateCmd.Flags().BoolVar(&updateDryRun, "dry-run", false, "plan the run without fetching or writing")
	updateCmd.Flags().IntVar(&updateWorkers, "workers", 0, "worker partitions (default from config)")

	rootCmd.AddCommand(updateCmd)
}
