package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keirinlab/keirin-cli/internal/store"
)

var (
	consolidateOut      string
	consolidatePostgres string
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge worker partitions into a single database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		out := consolidateOut
		if out == "" {
			out = cfg.Store.ConsolidatedPath
		}

		stats, err := store.Consolidate(ctx, cfg.Store.DataDir, out)
		if err != nil {
			return eris.Wrap(err, "consolidate")
		}

		total := int64(0)
		for _, n := range stats.Merged {
			total += n
		}
		zap.L().Info("consolidation complete",
			zap.String("out", out),
			zap.Int("partitions", stats.Partitions),
			zap.Int64("rows_merged", total),
		)

		pgURL := consolidatePostgres
		if pgURL == "" {
			pgURL = cfg.Store.PostgresURL
		}
		if pgURL == "" {
			return nil
		}

		pool, err := store.NewPostgresPool(ctx, pgURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := store.MigratePostgres(ctx, pool); err != nil {
			return err
		}

		src, err := store.Open(out)
		if err != nil {
			return err
		}
		defer src.Close()

		exported, err := store.ExportPostgres(ctx, pool, src)
		if err != nil {
			return eris.Wrap(err, "export to postgres")
		}
		zap.L().Info("postgres export complete", zap.Int64("rows", exported))

		return nil
	},
}

func init() {
	consolidateCmd.Flags().StringVar(&consolidateOut, "out", "", "output database path (default from config)")
	consolidateCmd.Flags().StringVar(&consolidatePostgres, "postgres", "", "postgres connection string for export (default from config)")

	rootCmd.AddCommand(consolidateCmd)
}
