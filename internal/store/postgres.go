package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Pool is the subset of pgxpool.Pool the exporter needs; pgxmock satisfies it.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const pgSchema = "keirin"

// NewPostgresPool connects a pgx pool for the exporter.
func NewPostgresPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "store: parse postgres config")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "store: connect postgres")
	}
	return pool, nil
}

// MigratePostgres creates the export schema. Column types stay loose on
// purpose: values arrive exactly as SQLite stored them, so flags are
// integers and timestamps are unix milliseconds.
func MigratePostgres(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgSchema); err != nil {
		return eris.Wrap(err, "store: create schema")
	}
	for _, kind := range kinds {
		spec := kindSpecs[kind]
		if _, err := pool.Exec(ctx, pgTableDDL(spec)); err != nil {
			return eris.Wrapf(err, "store: create table %s", spec.table)
		}
	}
	return nil
}

// ExportPostgres copies every row of the source database into Postgres.
// Each kind goes through a temp table and a single INSERT ... ON CONFLICT,
// so a partially exported table is never visible.
func ExportPostgres(ctx context.Context, pool Pool, src *Partition) (int64, error) {
	var total int64
	for _, kind := range kinds {
		spec := kindSpecs[kind]
		rows, err := src.selectAll(ctx, spec)
		if err != nil {
			return total, err
		}
		n, err := bulkUpsert(ctx, pool, spec, rows)
		if err != nil {
			return total, err
		}
		total += n
		zap.L().Debug("exported table",
			zap.String("table", spec.table), zap.Int64("rows", n))
	}
	return total, nil
}

// selectAll reads every row of one kind, payload columns plus updated_at,
// as generic values ready for COPY.
func (p *Partition) selectAll(ctx context.Context, spec kindSpec) ([][]any, error) {
	cols := append(append([]string{}, spec.columns...), "updated_at")
	rows, err := p.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s", quoteJoin(cols), quote(spec.table)))
	if err != nil {
		return nil, eris.Wrapf(err, "store: select %s", spec.table)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "store: scan %s", spec.table)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "store: iterate %s", spec.table)
	}
	return out, nil
}

// bulkUpsert loads rows via a temp table and one INSERT ... ON CONFLICT.
func bulkUpsert(ctx context.Context, pool Pool, spec kindSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "store: export: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cols := append(append([]string{}, spec.columns...), "updated_at")
	tempTable := "_tmp_export_" + spec.table
	target := pgx.Identifier{pgSchema, spec.table}.Sanitize()

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(), target)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "store: export: create temp table for %s", spec.table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, cols, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "store: export: COPY into temp table for %s", spec.table)
	}

	var set []string
	for _, c := range cols {
		if contains(spec.key, c) {
			continue
		}
		set = append(set, fmt.Sprintf("%s = EXCLUDED.%s",
			pgx.Identifier{c}.Sanitize(), pgx.Identifier{c}.Sanitize()))
	}

	colList := sanitizeJoin(cols)
	upsertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		target, colList, colList,
		pgx.Identifier{tempTable}.Sanitize(),
		sanitizeJoin(spec.key),
		strings.Join(set, ", "))

	tag, err := tx.Exec(ctx, upsertSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "store: export: INSERT ON CONFLICT for %s", spec.table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "store: export: commit tx")
	}
	return tag.RowsAffected(), nil
}

func sanitizeJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

// pgTableDDL builds the Postgres table for one kind with loose types and
// the same natural key as the SQLite schema.
func pgTableDDL(spec kindSpec) string {
	var cols []string
	for _, c := range spec.columns {
		cols = append(cols, fmt.Sprintf("%s %s", pgx.Identifier{c}.Sanitize(), pgColumnType(c)))
	}
	cols = append(cols, `"updated_at" BIGINT NOT NULL`)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s, PRIMARY KEY (%s))",
		pgx.Identifier{pgSchema, spec.table}.Sanitize(),
		strings.Join(cols, ", "),
		sanitizeJoin(spec.key))
}

func pgColumnType(col string) string {
	switch col {
	case "start_at", "close_at", "decided_at", "source_updated_at":
		return "BIGINT"
	case "number", "bracket_number", "duration", "grade", "day", "idx",
		"distance", "lap", "entry_count", "age", "line_number", "line_order",
		"popularity_order", "unit_price", "rank", "previous_rank", "lap_number",
		"ord", "x", "y", "track_distance":
		return "INTEGER"
	case "absent", "provisional", "cancelled", "is_grade", "entries_unfixed",
		"players_unfixed", "entryable", "has_digest_video", "is_aggregated",
		"delayed", "final", "has_arrow":
		return "INTEGER"
	case "odds", "min_odds", "max_odds", "payoff_unit_price", "gear",
		"win_rate", "second_rate", "third_rate", "race_point", "wind_speed",
		"track_straight_distance", "track_angle_center", "track_angle_straight",
		"home_width", "back_width", "center_width":
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}
