package store

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keirinlab/keirin-cli/internal/model"
)

func openTestPartition(t *testing.T, index int) *Partition {
	t.Helper()
	p, err := OpenPartition(t.TempDir(), index)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func structureSet() *RecordSet {
	rs := NewRecordSet()
	rs.AddVenues(model.Venue{ID: "v1", Name: "松戸", RegionID: "kanto"})
	rs.AddCups(model.Cup{
		ID: "cup1", Name: "松戸記念", StartDate: "2024-03-01", EndDate: "2024-03-03",
		Duration: 3, Grade: 3, VenueID: "v1", Labels: []string{"G3"},
	})
	rs.AddSchedules(model.Schedule{
		ID: "cup1_1", CupID: "cup1", Date: "2024-03-01", Day: 1, Index: 1,
	})
	rs.AddRaces(model.Race{
		ID: "cup1_1_1", ScheduleID: "cup1_1", CupID: "cup1", Number: 1,
		Date: "2024-03-01", Status: model.RaceScheduled,
	})
	return rs
}

func TestApplyAllCountsAndIdempotence(t *testing.T) {
	p := openTestPartition(t, 0)
	ctx := context.Background()

	res, err := p.ApplyAll(ctx, structureSet())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Inserted)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.Unchanged)

	// Same payload again: every record is unchanged.
	res, err = p.ApplyAll(ctx, structureSet())
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)
	assert.Zero(t, res.Updated)
	assert.Equal(t, 4, res.Unchanged)
}

func TestApplyRejectsDuplicatePlayerEntries(t *testing.T) {
	p := openTestPartition(t, 0)
	ctx := context.Background()

	_, err := p.ApplyAll(ctx, structureSet())
	require.NoError(t, err)

	// One rider cannot start twice in the same race.
	dup := NewRecordSet()
	dup.AddEntries(
		model.Entry{RaceID: "cup1_1_1", Number: 1, PlayerID: "pl1"},
		model.Entry{RaceID: "cup1_1_1", Number: 2, PlayerID: "pl1"},
	)
	_, err = p.ApplyAll(ctx, dup)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrConstraint), "got %v", err)

	// An absent re-listing of the same rider under another number is fine.
	ok := NewRecordSet()
	ok.AddEntries(
		model.Entry{RaceID: "cup1_1_1", Number: 1, PlayerID: "pl1"},
		model.Entry{RaceID: "cup1_1_1", Number: 2, PlayerID: "pl1", Absent: true},
	)
	res, err := p.ApplyAll(ctx, ok)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
}

func TestApplyUpdatesChangedColumns(t *testing.T) {
	p := openTestPartition(t, 0)
	ctx := context.Background()

	_, err := p.ApplyAll(ctx, structureSet())
	require.NoError(t, err)

	rs := NewRecordSet()
	rs.AddRaces(model.Race{
		ID: "cup1_1_1", ScheduleID: "cup1_1", CupID: "cup1", Number: 1,
		Date: "2024-03-01", Status: model.RaceDecided, DecidedAt: 1709290000,
	})
	res, err := p.ApplyAll(ctx, rs)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	refs, err := racesIn(t, p)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "decided", refs[0])
}

func racesIn(t *testing.T, p *Partition) ([]string, error) {
	t.Helper()
	rows, err := p.db.Query(`SELECT status FROM races ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func TestApplyAllRejectsOrphansAtomically(t *testing.T) {
	p := openTestPartition(t, 0)
	ctx := context.Background()

	_, err := p.ApplyAll(ctx, structureSet())
	require.NoError(t, err)

	// Second batch: one valid entry plus odds for a race that does not exist.
	rs := NewRecordSet()
	rs.AddEntries(model.Entry{RaceID: "cup1_1_1", Number: 1, PlayerID: "pl1", BracketNumber: 1})
	rs.AddOddsRows(model.OddsRow{RaceID: "missing", BetType: model.Exacta, Key: "1-2", Odds: 5.4})

	res, err := p.ApplyAll(ctx, rs)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrConstraint), "got %v", err)
	assert.Equal(t, 2, res.Failed)

	// The valid entry must have been rolled back with the batch.
	var n int
	require.NoError(t, p.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n))
	assert.Zero(t, n)
}

func TestApplySingleKind(t *testing.T) {
	p := openTestPartition(t, 0)
	ctx := context.Background()

	_, err := p.ApplyAll(ctx, structureSet())
	require.NoError(t, err)

	rs := NewRecordSet()
	rs.AddOddsStatus(model.OddsStatus{
		RaceID: "cup1_1_1",
		PayoffStatus: map[model.BetType]string{
			model.Exacta: "confirmed",
		},
		Final: true, UpdatedAt: 1709290000,
	})
	rs.AddOddsRows(
		model.OddsRow{RaceID: "cup1_1_1", BetType: model.Exacta, Key: "1-2", Odds: 5.4},
		model.OddsRow{RaceID: "cup1_1_1", BetType: model.Quinella, Key: "1-2", Odds: 2.7},
	)
	res, err := p.ApplyAll(ctx, rs)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Inserted)

	status, odds, err := p.OddsForRace(ctx, "cup1_1_1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.True(t, status.Final)
	assert.Equal(t, "confirmed", status.PayoffStatus[model.Exacta])
	assert.Len(t, odds, 2)
}

func TestConsolidateLastWriteWins(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	p0, err := OpenPartition(dir, 0)
	require.NoError(t, err)
	p1, err := OpenPartition(dir, 1)
	require.NoError(t, err)

	_, err = p0.ApplyAll(ctx, structureSet())
	require.NoError(t, err)

	// Millisecond clock: make sure the second write is strictly newer.
	time.Sleep(5 * time.Millisecond)

	rs := structureSet()
	rs.AddRaces(model.Race{
		ID: "cup1_1_1", ScheduleID: "cup1_1", CupID: "cup1", Number: 1,
		Date: "2024-03-01", Status: model.RaceDecided,
	})
	_, err = p1.ApplyAll(ctx, rs)
	require.NoError(t, err)

	require.NoError(t, p0.Close())
	require.NoError(t, p1.Close())

	outPath := t.TempDir() + "/consolidated.db"
	stats, err := Consolidate(ctx, dir, outPath)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Partitions)

	out, err := Open(outPath)
	require.NoError(t, err)
	defer out.Close()

	var status string
	require.NoError(t, out.db.QueryRow(
		`SELECT status FROM races WHERE id = 'cup1_1_1'`).Scan(&status))
	assert.Equal(t, "decided", status)

	// A second pass over the same partitions merges nothing new.
	stats, err = Consolidate(ctx, dir, outPath)
	require.NoError(t, err)
	for kind, n := range stats.Merged {
		assert.Zero(t, n, "kind %s re-merged", kind)
	}
}

func TestConsolidateEmptyDir(t *testing.T) {
	stats, err := Consolidate(context.Background(), t.TempDir(), t.TempDir()+"/out.db")
	require.NoError(t, err)
	assert.Zero(t, stats.Partitions)
}

func TestCatalogDeduplicatesAcrossPartitions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	p0, err := OpenPartition(dir, 0)
	require.NoError(t, err)
	p1, err := OpenPartition(dir, 1)
	require.NoError(t, err)

	_, err = p0.ApplyAll(ctx, structureSet())
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	rs := structureSet()
	rs.AddRaces(model.Race{
		ID: "cup1_1_1", ScheduleID: "cup1_1", CupID: "cup1", Number: 1,
		Date: "2024-03-01", Status: model.RaceClosed,
	})
	_, err = p1.ApplyAll(ctx, rs)
	require.NoError(t, err)
	require.NoError(t, p0.Close())
	require.NoError(t, p1.Close())

	cat, err := OpenCatalog(dir)
	require.NoError(t, err)
	defer cat.Close()

	cups, err := cat.CupsInRange(ctx, "2024-03-01", "2024-03-03")
	require.NoError(t, err)
	require.Len(t, cups, 1)
	assert.Equal(t, "cup1", cups[0].ID)

	// Out of range.
	cups, err = cat.CupsInRange(ctx, "2024-04-01", "2024-04-30")
	require.NoError(t, err)
	assert.Empty(t, cups)

	races, err := cat.RacesForCups(ctx, []string{"cup1"}, "", "")
	require.NoError(t, err)
	require.Len(t, races, 1)
	assert.Equal(t, "closed", races[0].Status, "newer partition row wins")
	assert.Equal(t, 1, races[0].ScheduleIndex)
	assert.Equal(t, "2024-03-01", races[0].CupStartDate)
}

func TestStatusTrackerLifecycle(t *testing.T) {
	ctx := context.Background()
	tr, err := OpenStatus(t.TempDir())
	require.NoError(t, err)
	defer tr.Close()

	runID, err := tr.StartRun(ctx, "single-day", "1-5")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	done, err := tr.IsDone(ctx, "2024-03-01", 1)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, tr.MarkDone(ctx, "2024-03-01", 1, runID))
	done, err = tr.IsDone(ctx, "2024-03-01", 1)
	require.NoError(t, err)
	assert.True(t, done)

	require.NoError(t, tr.MarkFailed(ctx, "cup9", 2, runID, "not found"))
	require.NoError(t, tr.MarkPending(ctx, "cup8", 2, runID, "timeout"))

	// Same scope and stage at different stages stay independent.
	done, err = tr.IsDone(ctx, "2024-03-01", 2)
	require.NoError(t, err)
	assert.False(t, done)

	remaining, err := tr.FilterDone(ctx, []string{"cup9", "cup8", "cup7"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"cup9", "cup8", "cup7"}, remaining, "failed and pending retry")

	require.NoError(t, tr.CompleteRun(ctx, runID, "done=1 failed=1"))

	counts, runs, err := tr.Summary(ctx, 5)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, StageCounts{Stage: 1, Done: 1}, counts[0])
	assert.Equal(t, StageCounts{Stage: 2, Failed: 1, Pending: 1}, counts[1])
	require.Len(t, runs, 1)
	assert.Equal(t, "single-day", runs[0].Mode)
	assert.NotZero(t, runs[0].FinishedAt)
}

func TestStatusTrackerAttemptsAccumulate(t *testing.T) {
	ctx := context.Background()
	tr, err := OpenStatus(t.TempDir())
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.MarkPending(ctx, "race1", 4, "r1", "x"))
	require.NoError(t, tr.MarkPending(ctx, "race1", 4, "r2", "y"))
	require.NoError(t, tr.MarkDone(ctx, "race1", 4, "r3"))

	var attempts int
	require.NoError(t, tr.db.QueryRow(
		`SELECT attempts FROM stage_status WHERE scope_id = 'race1' AND stage = 4`).
		Scan(&attempts))
	assert.Equal(t, 3, attempts)
}

func TestRacesOnDate(t *testing.T) {
	p := openTestPartition(t, 0)
	ctx := context.Background()

	_, err := p.ApplyAll(ctx, structureSet())
	require.NoError(t, err)

	races, err := p.RacesOn(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Len(t, races, 1)
	assert.Equal(t, "松戸記念", races[0].CupName)
	assert.Equal(t, "松戸", races[0].VenueName)

	races, err = p.RacesOn(ctx, "2024-03-02")
	require.NoError(t, err)
	assert.Empty(t, races)
}

func TestResultForRace(t *testing.T) {
	p := openTestPartition(t, 0)
	ctx := context.Background()

	_, err := p.ApplyAll(ctx, structureSet())
	require.NoError(t, err)

	missing, err := p.ResultForRace(ctx, "cup1_1_1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	rs := NewRecordSet()
	rs.AddRaceResults(
		model.RaceResult{RaceID: "cup1_1_1", BracketNumber: 3, Rank: 1, RankText: "1", PlayerName: "山田"},
		model.RaceResult{RaceID: "cup1_1_1", BracketNumber: 7, Rank: 0, RankText: "落車", PlayerName: "佐藤"},
	)
	rs.AddRaceComment(model.RaceComment{RaceID: "cup1_1_1", Comment: "追い込み決着"})
	rs.AddLapPositions(model.LapPosition{
		RaceID: "cup1_1_1", Section: "打鐘", BracketNumber: 3, Order: 1, HasArrow: true,
	})
	rs.AddInspectionReports(model.InspectionReport{
		RaceID: "cup1_1_1", PlayerName: "佐藤", Text: "落車による棄権",
	})
	_, err = p.ApplyAll(ctx, rs)
	require.NoError(t, err)

	view, err := p.ResultForRace(ctx, "cup1_1_1")
	require.NoError(t, err)
	require.NotNil(t, view)
	require.Len(t, view.Results, 2)
	assert.Equal(t, "落車", view.Results[1].RankText)
	assert.Equal(t, "追い込み決着", view.Comment)
	require.Len(t, view.Laps, 1)
	assert.True(t, view.Laps[0].HasArrow)
	require.Len(t, view.Inspections, 1)
}
