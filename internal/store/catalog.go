package store

import (
	"context"
	"database/sql"
	"sort"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// CupRef is the slice of a cup a later stage needs to schedule work.
type CupRef struct {
	ID        string
	VenueID   string
	StartDate string
	UpdatedAt int64
}

// RaceRef carries everything the race-level stages need to address a race
// against either source: the api path components and the scrape key inputs.
type RaceRef struct {
	ID            string
	CupID         string
	CupStartDate  string
	VenueID       string
	ScheduleIndex int
	Number        int
	Date          string
	Status        string
	UpdatedAt     int64
}

// Catalog reads entity rows across every partition under a data directory.
// Stages run behind a global barrier, so no partition has an active writer
// while the catalog reads; duplicates across partitions resolve to the row
// with the newest updated_at.
type Catalog struct {
	dbs   []*sql.DB
	paths []string
}

// OpenCatalog opens every partition under dir read-only.
func OpenCatalog(dir string) (*Catalog, error) {
	paths, err := ListPartitions(dir)
	if err != nil {
		return nil, err
	}
	c := &Catalog{paths: paths}
	for _, path := range paths {
		db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
		if err != nil {
			c.Close()
			return nil, eris.Wrapf(err, "store: open %s", path)
		}
		c.dbs = append(c.dbs, db)
	}
	return c, nil
}

func (c *Catalog) Close() error {
	var first error
	for _, db := range c.dbs {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CupsInRange returns the cups whose running days overlap [from, to]
// (inclusive, YYYY-MM-DD), deduplicated across partitions and sorted by
// start date then id.
func (c *Catalog) CupsInRange(ctx context.Context, from, to string) ([]CupRef, error) {
	newest := make(map[string]CupRef)
	for i, db := range c.dbs {
		rows, err := db.QueryContext(ctx, `
			SELECT id, venue_id, start_date, updated_at
			FROM cups
			WHERE start_date <= ? AND COALESCE(end_date, start_date) >= ?`,
			to, from)
		if err != nil {
			return nil, eris.Wrapf(err, "store: query cups in %s", c.paths[i])
		}
		for rows.Next() {
			var r CupRef
			if err := rows.Scan(&r.ID, &r.VenueID, &r.StartDate, &r.UpdatedAt); err != nil {
				rows.Close()
				return nil, eris.Wrap(err, "store: scan cup")
			}
			if prev, ok := newest[r.ID]; !ok || r.UpdatedAt > prev.UpdatedAt {
				newest[r.ID] = r
			}
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}

	out := make([]CupRef, 0, len(newest))
	for _, r := range newest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate != out[j].StartDate {
			return out[i].StartDate < out[j].StartDate
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// RacesForCups returns every known race of the given cups within the date
// range, deduplicated across partitions and sorted by date, cup, schedule
// index, race number. Pass empty date bounds to disable the range filter.
func (c *Catalog) RacesForCups(ctx context.Context, cupIDs []string, from, to string) ([]RaceRef, error) {
	if len(cupIDs) == 0 {
		return nil, nil
	}
	wanted := make(map[string]bool, len(cupIDs))
	for _, id := range cupIDs {
		wanted[id] = true
	}

	newest := make(map[string]RaceRef)
	for i, db := range c.dbs {
		rows, err := db.QueryContext(ctx, `
			SELECT r.id, r.cup_id, c.start_date, c.venue_id, s.idx, r.number,
				r.date, r.status, r.updated_at
			FROM races r
			JOIN schedules s ON s.id = r.schedule_id
			JOIN cups c ON c.id = r.cup_id`)
		if err != nil {
			return nil, eris.Wrapf(err, "store: query races in %s", c.paths[i])
		}
		for rows.Next() {
			var r RaceRef
			if err := rows.Scan(&r.ID, &r.CupID, &r.CupStartDate, &r.VenueID,
				&r.ScheduleIndex, &r.Number, &r.Date, &r.Status, &r.UpdatedAt); err != nil {
				rows.Close()
				return nil, eris.Wrap(err, "store: scan race")
			}
			if !wanted[r.CupID] {
				continue
			}
			if from != "" && r.Date < from {
				continue
			}
			if to != "" && r.Date > to {
				continue
			}
			if prev, ok := newest[r.ID]; !ok || r.UpdatedAt > prev.UpdatedAt {
				newest[r.ID] = r
			}
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}

	out := make([]RaceRef, 0, len(newest))
	for _, r := range newest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.CupID != b.CupID {
			return a.CupID < b.CupID
		}
		if a.ScheduleIndex != b.ScheduleIndex {
			return a.ScheduleIndex < b.ScheduleIndex
		}
		return a.Number < b.Number
	})
	return out, nil
}

// FinalOdds returns the set of race ids whose odds status has gone final.
// Final odds never change, so the odds stage skips these unless forced.
func (c *Catalog) FinalOdds(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool)
	for i, db := range c.dbs {
		rows, err := db.QueryContext(ctx,
			`SELECT race_id FROM odds_statuses WHERE final != 0`)
		if err != nil {
			return nil, eris.Wrapf(err, "store: query odds statuses in %s", c.paths[i])
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, eris.Wrap(err, "store: scan odds status")
			}
			out[id] = true
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return eris.Wrap(err, "store: iterate rows")
	}
	return eris.Wrap(rows.Close(), "store: close rows")
}
