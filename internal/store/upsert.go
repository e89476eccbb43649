package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Upsert engine errors.
var (
	// ErrConstraint marks a rejected batch: a referenced parent row is
	// missing. The batch is rolled back and run status stays pending.
	ErrConstraint = eris.New("store: constraint violation")

	// ErrStorage marks an I/O-level failure of the partition database.
	ErrStorage = eris.New("store: storage failure")
)

// UpsertResult reports what one apply did per record.
type UpsertResult struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Add accumulates another result into r.
func (r *UpsertResult) Add(o UpsertResult) {
	r.Inserted += o.Inserted
	r.Updated += o.Updated
	r.Unchanged += o.Unchanged
	r.Failed += o.Failed
}

// Total returns the number of records accounted for.
func (r UpsertResult) Total() int {
	return r.Inserted + r.Updated + r.Unchanged + r.Failed
}

// Apply upserts one batch of rows of a single kind as an atomic unit.
// A record whose natural key already exists becomes an update of the kind's
// mutable columns; an update that would not change any column counts as
// unchanged. Applying the same rows twice therefore reports every record
// unchanged the second time.
func (p *Partition) Apply(ctx context.Context, kind Kind, rows []Row) (UpsertResult, error) {
	rs := NewRecordSet()
	rs.add(kind, rows...)
	return p.ApplyAll(ctx, rs)
}

// ApplyAll upserts every batch in the record set inside one transaction:
// either all records are visible afterwards or none are.
func (p *Partition) ApplyAll(ctx context.Context, rs *RecordSet) (UpsertResult, error) {
	var result UpsertResult
	if rs.Empty() {
		return result, nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{Failed: rs.Rows()}, eris.Wrap(ErrStorage, err.Error())
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UnixMilli()
	for _, b := range rs.batches {
		r, err := applyBatch(ctx, tx, b.kind, b.rows, now)
		if err != nil {
			return UpsertResult{Failed: rs.Rows()}, err
		}
		result.Add(r)
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{Failed: rs.Rows()}, eris.Wrap(ErrStorage, err.Error())
	}
	return result, nil
}

func applyBatch(ctx context.Context, tx *sql.Tx, kind Kind, rows []Row, now int64) (UpsertResult, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return UpsertResult{}, eris.Errorf("store: unknown kind %q", kind)
	}

	pos := make(map[string]int, len(spec.columns))
	for i, c := range spec.columns {
		pos[c] = i
	}
	mutable := spec.mutableColumns()

	existsSQL := fmt.Sprintf("SELECT 1 FROM %s WHERE %s",
		quote(spec.table), keyPredicate(spec.key))

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s, updated_at) VALUES (%s)",
		quote(spec.table), quoteJoin(spec.columns),
		placeholders(len(spec.columns)+1))

	// The inequality predicate makes a no-op update report zero affected
	// rows, which is how unchanged records are counted.
	var diff []string
	for _, c := range mutable {
		diff = append(diff, fmt.Sprintf("%s IS ?", quote(c)))
	}
	var set []string
	for _, c := range mutable {
		set = append(set, fmt.Sprintf("%s = ?", quote(c)))
	}
	updateSQL := fmt.Sprintf("UPDATE %s SET %s, updated_at = ? WHERE %s AND NOT (%s)",
		quote(spec.table), strings.Join(set, ", "), keyPredicate(spec.key),
		strings.Join(diff, " AND "))

	var result UpsertResult
	for _, row := range rows {
		if len(row) != len(spec.columns) {
			return UpsertResult{}, eris.Errorf(
				"store: %s row has %d values, want %d", kind, len(row), len(spec.columns))
		}

		keyVals := make([]any, len(spec.key))
		for i, c := range spec.key {
			keyVals[i] = row[pos[c]]
		}

		var one int
		err := tx.QueryRowContext(ctx, existsSQL, keyVals...).Scan(&one)
		switch {
		case err == sql.ErrNoRows:
			args := append(append([]any{}, row...), now)
			if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
				return UpsertResult{}, classify(err, string(kind))
			}
			result.Inserted++
		case err != nil:
			return UpsertResult{}, eris.Wrapf(ErrStorage, "%s: %s", kind, err.Error())
		default:
			args := make([]any, 0, 2*len(mutable)+len(spec.key)+1)
			for _, c := range mutable {
				args = append(args, row[pos[c]])
			}
			args = append(args, now)
			args = append(args, keyVals...)
			for _, c := range mutable {
				args = append(args, row[pos[c]])
			}
			res, err := tx.ExecContext(ctx, updateSQL, args...)
			if err != nil {
				return UpsertResult{}, classify(err, string(kind))
			}
			n, err := res.RowsAffected()
			if err != nil {
				return UpsertResult{}, eris.Wrapf(ErrStorage, "%s: %s", kind, err.Error())
			}
			if n > 0 {
				result.Updated++
			} else {
				result.Unchanged++
			}
		}
	}
	return result, nil
}

func classify(err error, kind string) error {
	msg := err.Error()
	if strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return eris.Wrapf(ErrConstraint, "%s: %s", kind, msg)
	}
	if strings.Contains(msg, "constraint failed") {
		return eris.Wrapf(ErrConstraint, "%s: %s", kind, msg)
	}
	return eris.Wrapf(ErrStorage, "%s: %s", kind, msg)
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func quoteJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
	}
	return strings.Join(quoted, ", ")
}

func keyPredicate(key []string) string {
	preds := make([]string, len(key))
	for i, c := range key {
		preds[i] = fmt.Sprintf("%s = ?", quote(c))
	}
	return strings.Join(preds, " AND ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
