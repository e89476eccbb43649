package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Stage status states.
const (
	StatePending = "pending"
	StateDone    = "done"
	StateFailed  = "failed"
)

const statusMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	stages      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	summary     TEXT
);

CREATE TABLE IF NOT EXISTS stage_status (
	scope_id    TEXT NOT NULL,
	stage       INTEGER NOT NULL,
	state       TEXT NOT NULL,
	attempts    INTEGER NOT NULL DEFAULT 0,
	last_run_id TEXT,
	last_error  TEXT,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (scope_id, stage)
);

CREATE INDEX IF NOT EXISTS idx_stage_status_state ON stage_status(stage, state);
`

// StatusTracker records per-scope stage completion in a database separate
// from the entity partitions. The scope identifier depends on the stage:
// a date for discovery, a cup id for cup detail, a race id for the race
// level stages. A scope marked done is skipped on later runs unless the
// caller forces a refresh.
type StatusTracker struct {
	db   *sql.DB
	path string
}

// OpenStatus opens (creating if needed) the status database under dir.
func OpenStatus(dir string) (*StatusTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "store: create data dir %s", dir)
	}
	path := filepath.Join(dir, "status.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", path)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	if _, err := db.Exec(statusMigration); err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "store: migrate %s", path)
	}
	return &StatusTracker{db: db, path: path}, nil
}

func (t *StatusTracker) Close() error { return t.db.Close() }

// IsDone reports whether the scope has completed the stage.
func (t *StatusTracker) IsDone(ctx context.Context, scopeID string, stage int) (bool, error) {
	var state string
	err := t.db.QueryRowContext(ctx,
		`SELECT state FROM stage_status WHERE scope_id = ? AND stage = ?`,
		scopeID, stage).Scan(&state)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "store: query status %s/%d", scopeID, stage)
	}
	return state == StateDone, nil
}

// FilterDone returns the scope ids that have NOT completed the stage,
// preserving input order. Failed and pending scopes are retried.
func (t *StatusTracker) FilterDone(ctx context.Context, scopeIDs []string, stage int) ([]string, error) {
	remaining := make([]string, 0, len(scopeIDs))
	for _, id := range scopeIDs {
		done, err := t.IsDone(ctx, id, stage)
		if err != nil {
			return nil, err
		}
		if !done {
			remaining = append(remaining, id)
		}
	}
	return remaining, nil
}

// MarkDone records successful completion of a stage for a scope.
func (t *StatusTracker) MarkDone(ctx context.Context, scopeID string, stage int, runID string) error {
	return t.mark(ctx, scopeID, stage, StateDone, runID, "")
}

// MarkFailed records a permanent failure of a stage for a scope. The scope
// is retried on the next run; the error text is kept for the status report.
func (t *StatusTracker) MarkFailed(ctx context.Context, scopeID string, stage int, runID, errText string) error {
	return t.mark(ctx, scopeID, stage, StateFailed, runID, errText)
}

// MarkPending records an attempt that did not conclude, typically after a
// retryable fetch error. Attempt counts accumulate across runs.
func (t *StatusTracker) MarkPending(ctx context.Context, scopeID string, stage int, runID, errText string) error {
	return t.mark(ctx, scopeID, stage, StatePending, runID, errText)
}

func (t *StatusTracker) mark(ctx context.Context, scopeID string, stage int, state, runID, errText string) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO stage_status (scope_id, stage, state, attempts, last_run_id, last_error, updated_at)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (scope_id, stage) DO UPDATE SET
			state = excluded.state,
			attempts = stage_status.attempts + 1,
			last_run_id = excluded.last_run_id,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		scopeID, stage, state, runID, errText, time.Now().UnixMilli())
	return eris.Wrapf(err, "store: mark %s/%d %s", scopeID, stage, state)
}

// StartRun opens a run record and returns its id.
func (t *StatusTracker) StartRun(ctx context.Context, mode, stages string) (string, error) {
	id := uuid.NewString()
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, stages, started_at) VALUES (?, ?, ?, ?)`,
		id, mode, stages, time.Now().UnixMilli())
	if err != nil {
		return "", eris.Wrap(err, "store: start run")
	}
	return id, nil
}

// CompleteRun closes a run record with a human-readable summary.
func (t *StatusTracker) CompleteRun(ctx context.Context, runID, summary string) error {
	_, err := t.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, summary = ? WHERE id = ?`,
		time.Now().UnixMilli(), summary, runID)
	return eris.Wrapf(err, "store: complete run %s", runID)
}

// StageCounts is the per-stage breakdown reported by Summary.
type StageCounts struct {
	Stage   int `json:"stage"`
	Done    int `json:"done"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

// RunInfo describes one recorded run.
type RunInfo struct {
	ID         string `json:"id"`
	Mode       string `json:"mode"`
	Stages     string `json:"stages"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at,omitempty"`
	Summary    string `json:"summary,omitempty"`
}

// Summary returns the per-stage state counts and the most recent runs,
// newest first.
func (t *StatusTracker) Summary(ctx context.Context, recentRuns int) ([]StageCounts, []RunInfo, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT stage,
			SUM(CASE WHEN state = 'done' THEN 1 ELSE 0 END),
			SUM(CASE WHEN state = 'failed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN state = 'pending' THEN 1 ELSE 0 END)
		FROM stage_status GROUP BY stage ORDER BY stage`)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: stage summary")
	}
	defer rows.Close()

	var counts []StageCounts
	for rows.Next() {
		var c StageCounts
		if err := rows.Scan(&c.Stage, &c.Done, &c.Failed, &c.Pending); err != nil {
			return nil, nil, eris.Wrap(err, "store: scan stage summary")
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "store: stage summary")
	}

	runRows, err := t.db.QueryContext(ctx, `
		SELECT id, mode, stages, started_at, COALESCE(finished_at, 0), COALESCE(summary, '')
		FROM runs ORDER BY started_at DESC LIMIT ?`, recentRuns)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: run summary")
	}
	defer runRows.Close()

	var runs []RunInfo
	for runRows.Next() {
		var r RunInfo
		if err := runRows.Scan(&r.ID, &r.Mode, &r.Stages, &r.StartedAt, &r.FinishedAt, &r.Summary); err != nil {
			return nil, nil, eris.Wrap(err, "store: scan run summary")
		}
		runs = append(runs, r)
	}
	if err := runRows.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "store: run summary")
	}
	return counts, runs, nil
}
