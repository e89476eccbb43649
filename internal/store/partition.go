package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Partition is one worker-local SQLite database holding the full entity
// schema. The one-partition-one-writer discipline means a partition is never
// written by two goroutines at once; the consolidator is the only component
// that reads across partitions, and only while no run is active.
type Partition struct {
	db    *sql.DB
	path  string
	index int
}

// PartitionPath returns the file path for a worker's partition.
func PartitionPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("partition-%03d.db", index))
}

// OpenPartition opens (creating if needed) the partition for a worker index
// and runs migrations.
func OpenPartition(dir string, index int) (*Partition, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "store: create data dir %s", dir)
	}
	return openAt(PartitionPath(dir, index), index)
}

// Open opens a single database at path with the full entity schema. The
// consolidated artifact uses the same layout as a partition.
func Open(path string) (*Partition, error) {
	return openAt(path, -1)
}

func openAt(path string, index int) (*Partition, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", path)
	}
	// One connection per partition: pragmas are per-connection and a
	// partition only ever has one writer.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	p := &Partition{db: db, path: path, index: index}
	if err := p.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// Migrate creates the entity schema.
func (p *Partition) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, migration)
	return eris.Wrapf(err, "store: migrate %s", p.path)
}

// Index returns the worker index this partition was opened for (-1 for a
// consolidated database).
func (p *Partition) Index() int { return p.index }

// Path returns the database file path.
func (p *Partition) Path() string { return p.path }

func (p *Partition) Close() error {
	return p.db.Close()
}

// ListPartitions returns the partition files under dir in index order.
func ListPartitions(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "partition-*.db"))
	if err != nil {
		return nil, eris.Wrapf(err, "store: list partitions in %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}
