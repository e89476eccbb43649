package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ConsolidateStats reports what one consolidation pass merged.
type ConsolidateStats struct {
	Partitions int            `json:"partitions"`
	Merged     map[Kind]int64 `json:"merged"`
}

// Consolidate merges every partition under dir into the database at outPath.
// Conflicting rows resolve by newest updated_at, so rows the target already
// holds in their latest form are left untouched and a rerun over the same
// partitions changes nothing. Kinds are merged in dependency order across
// all partitions, which keeps foreign keys satisfied even when a child row
// lives in a different partition than its parent.
func Consolidate(ctx context.Context, dir, outPath string) (ConsolidateStats, error) {
	stats := ConsolidateStats{Merged: make(map[Kind]int64, len(kinds))}

	paths, err := ListPartitions(dir)
	if err != nil {
		return stats, err
	}
	if len(paths) == 0 {
		zap.L().Info("no partitions to consolidate", zap.String("dir", dir))
		return stats, nil
	}
	stats.Partitions = len(paths)

	out, err := Open(outPath)
	if err != nil {
		return stats, err
	}
	defer out.Close()

	for i, path := range paths {
		alias := fmt.Sprintf("src%d", i)
		if _, err := out.db.ExecContext(ctx, fmt.Sprintf("ATTACH DATABASE %s AS %s", quoteLiteral(path), alias)); err != nil {
			return stats, eris.Wrapf(err, "store: attach %s", path)
		}
	}

	for _, kind := range kinds {
		spec := kindSpecs[kind]
		mergeSQL := mergeStatement(spec)
		for i := range paths {
			alias := fmt.Sprintf("src%d", i)
			res, err := out.db.ExecContext(ctx, fmt.Sprintf(mergeSQL, alias))
			if err != nil {
				return stats, eris.Wrapf(err, "store: merge %s from %s", kind, paths[i])
			}
			n, err := res.RowsAffected()
			if err != nil {
				return stats, eris.Wrapf(err, "store: merge %s", kind)
			}
			stats.Merged[kind] += n
		}
	}

	for i := range paths {
		alias := fmt.Sprintf("src%d", i)
		if _, err := out.db.ExecContext(ctx, "DETACH DATABASE "+alias); err != nil {
			return stats, eris.Wrapf(err, "store: detach %s", paths[i])
		}
	}

	zap.L().Info("consolidation complete",
		zap.Int("partitions", stats.Partitions),
		zap.String("out", outPath))
	return stats, nil
}

// mergeStatement builds the per-kind upsert with a %s placeholder for the
// attached source alias. The WHERE on the conflict clause rejects rows older
// than what the target already holds.
func mergeStatement(spec kindSpec) string {
	cols := append(append([]string{}, spec.columns...), "updated_at")

	var set []string
	for _, c := range cols {
		if contains(spec.key, c) {
			continue
		}
		set = append(set, fmt.Sprintf("%s = excluded.%s", quote(c), quote(c)))
	}

	return fmt.Sprintf(
		"INSERT INTO main.%s (%s) SELECT %s FROM %%s.%s WHERE true "+
			"ON CONFLICT (%s) DO UPDATE SET %s WHERE excluded.updated_at > main.%s.updated_at",
		quote(spec.table), quoteJoin(cols), quoteJoin(cols), quote(spec.table),
		quoteJoin(spec.key), strings.Join(set, ", "), quote(spec.table))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
