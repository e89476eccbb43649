package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keirinlab/keirin-cli/internal/model"
	"github.com/keirinlab/keirin-cli/internal/source"
	"github.com/keirinlab/keirin-cli/internal/store"
)

func TestNormalizeMonth(t *testing.T) {
	resp := &source.MonthlyCupsResponse{}
	resp.Venues = []source.RawVenue{
		{ID: "v1", Name: "松戸", RegionID: "kanto", TrackDistance: 333},
	}
	resp.Month.Cups = []source.RawCup{
		{ID: "cup1", Name: "松戸記念", StartDate: "2024-03-01", EndDate: "2024-03-03",
			Grade: 3, VenueID: "v1", Labels: []string{"G3"}},
		{ID: "cup2", Name: "平塚FI", StartDate: "2024-03-05", VenueID: "v2"},
	}

	counts := NormalizeMonth(resp).Counts()
	assert.Equal(t, 1, counts[store.KindVenue])
	assert.Equal(t, 2, counts[store.KindCup])
}

func TestNormalizeMonthEmpty(t *testing.T) {
	// A month with no meets is valid, not an error.
	rs := NormalizeMonth(&source.MonthlyCupsResponse{})
	assert.True(t, rs.Empty())
}

func TestNormalizeCupDetail(t *testing.T) {
	resp := &source.CupDetailResponse{
		Cup: source.RawCup{ID: "cup1", Name: "松戸記念", StartDate: "2024-03-01", VenueID: "v1"},
		Schedules: []source.RawSchedule{
			{ID: "s-raw-1", Date: "2024-03-01", Day: 1, Index: 1},
			{ID: "s-raw-2", Date: "2024-03-02", Day: 2, Index: 2},
		},
		Races: []source.RawRace{
			{Number: 1, ScheduleIndex: 1, Status: "scheduled"},
			{Number: 2, ScheduleIndex: 1, Status: "scheduled", Date: "2024-03-01"},
			{Number: 1, ScheduleIndex: 2, Status: "scheduled"},
		},
	}

	rs, err := NormalizeCupDetail(resp)
	require.NoError(t, err)
	counts := rs.Counts()
	assert.Equal(t, 1, counts[store.KindCup])
	assert.Equal(t, 2, counts[store.KindSchedule])
	assert.Equal(t, 3, counts[store.KindRace])

	// Round-trip through a partition to check the rebuilt identifiers and
	// the date fallback from the schedule.
	p, err := store.OpenPartition(t.TempDir(), 0)
	require.NoError(t, err)
	defer p.Close()

	seed := store.NewRecordSet()
	seed.AddVenues(model.Venue{ID: "v1", Name: "松戸"})
	_, err = p.ApplyAll(t.Context(), seed)
	require.NoError(t, err)
	_, err = p.ApplyAll(t.Context(), rs)
	require.NoError(t, err)

	day1, err := p.RacesOn(t.Context(), "2024-03-01")
	require.NoError(t, err)
	require.Len(t, day1, 2)
	assert.Equal(t, "cup1_1_1", day1[0].ID)
	assert.Equal(t, "cup1_1", day1[0].ScheduleID)

	day2, err := p.RacesOn(t.Context(), "2024-03-02")
	require.NoError(t, err)
	require.Len(t, day2, 1)
	assert.Equal(t, "cup1_2_1", day2[0].ID)
}

func TestNormalizeCupDetailMissingID(t *testing.T) {
	_, err := NormalizeCupDetail(&source.CupDetailResponse{})
	require.Error(t, err)
}

func TestNormalizeRaceDetail(t *testing.T) {
	resp := &source.RaceDetailResponse{
		Race: source.RawRace{
			Number: 7, ScheduleIndex: 2, Date: "2024-03-02",
			Status: "scheduled", EntriesUnfixed: true,
		},
		Entries: []source.RawEntry{
			{Number: 1, BracketNumber: 1, PlayerID: "pl1"},
			{Number: 2, BracketNumber: 2, PlayerID: "pl2", Absent: true},
		},
		Players: []source.RawPlayer{
			{ID: "pl1", Name: "山田", Class: "S1", Style: "逃"},
			{ID: "pl2", Name: "佐藤", Class: "S2", Style: "追"},
		},
		Records: []source.RawRecord{
			{PlayerID: "pl1", Gear: 3.92, WinRate: 24.1},
		},
		LinePrediction: source.RawLinePrediction{
			LineType: "single", Lines: [][]int{{1, 2}},
		},
	}

	rs, err := NormalizeRaceDetail("cup1", resp)
	require.NoError(t, err)
	counts := rs.Counts()
	assert.Equal(t, 1, counts[store.KindRace])
	assert.Equal(t, 2, counts[store.KindPlayer])
	assert.Equal(t, 2, counts[store.KindRacePlayer])
	assert.Equal(t, 2, counts[store.KindEntry])
	assert.Equal(t, 1, counts[store.KindPlayerRecord])
	assert.Equal(t, 2, counts[store.KindLinePrediction])

	p, err := store.OpenPartition(t.TempDir(), 0)
	require.NoError(t, err)
	defer p.Close()

	seed := store.NewRecordSet()
	seed.AddVenues(model.Venue{ID: "v1", Name: "松戸"})
	seed.AddCups(model.Cup{ID: "cup1", Name: "松戸記念", StartDate: "2024-03-01", VenueID: "v1"})
	seed.AddSchedules(model.Schedule{ID: "cup1_2", CupID: "cup1", Date: "2024-03-02", Day: 2, Index: 2})
	_, err = p.ApplyAll(t.Context(), seed)
	require.NoError(t, err)
	_, err = p.ApplyAll(t.Context(), rs)
	require.NoError(t, err)

	entries, err := p.EntriesForRace(t.Context(), "cup1_2_7")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Provisional, "unfixed start list marks entries provisional")
	assert.Equal(t, "S1", entries[0].Class, "class backfilled from the player profile")
	assert.True(t, entries[1].Absent)
}

func TestNormalizeRaceDetailFixedEntries(t *testing.T) {
	resp := &source.RaceDetailResponse{
		Race:    source.RawRace{Number: 1, ScheduleIndex: 1, Status: "closed"},
		Entries: []source.RawEntry{{Number: 1, PlayerID: "pl1", Class: "S1"}},
	}
	rs, err := NormalizeRaceDetail("cup1", resp)
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Counts()[store.KindEntry])
}

func TestNormalizeOdds(t *testing.T) {
	resp := &source.OddsResponse{}
	resp.Odds = source.RawOdds{
		UpdatedAt:            1709290000,
		IsAggregated:         true,
		FinalOdds:            true,
		ExactaPayoffStatus:   "confirmed",
		QuinellaPayoffStatus: "confirmed",
		Exacta: []source.RawOddsItem{
			{Key: []int{2, 1}, Odds: 12.3, PopularityOrder: 4},
		},
		Quinella: []source.RawOddsItem{
			{Key: []int{2, 1}, Odds: 5.6},
		},
		// Trio and the rest absent: no rows, existing rows stay untouched.
	}

	rs := NormalizeOdds("cup1_1_1", resp)
	counts := rs.Counts()
	assert.Equal(t, 1, counts[store.KindOddsStatus])
	assert.Equal(t, 2, counts[store.KindOdds])

	p, err := store.OpenPartition(t.TempDir(), 0)
	require.NoError(t, err)
	defer p.Close()

	seed := store.NewRecordSet()
	seed.AddVenues(model.Venue{ID: "v1", Name: "松戸"})
	seed.AddCups(model.Cup{ID: "cup1", Name: "松戸記念", StartDate: "2024-03-01", VenueID: "v1"})
	seed.AddSchedules(model.Schedule{ID: "cup1_1", CupID: "cup1", Date: "2024-03-01", Day: 1, Index: 1})
	seed.AddRaces(model.Race{ID: "cup1_1_1", ScheduleID: "cup1_1", CupID: "cup1",
		Number: 1, Date: "2024-03-01", Status: model.RaceDecided})
	_, err = p.ApplyAll(t.Context(), seed)
	require.NoError(t, err)
	_, err = p.ApplyAll(t.Context(), rs)
	require.NoError(t, err)

	status, odds, err := p.OddsForRace(t.Context(), "cup1_1_1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, "final", status.State())
	assert.Equal(t, "confirmed", status.PayoffStatus[model.Exacta])
	require.Len(t, odds, 2)
	// Exacta keeps the reported order, quinella canonicalizes it.
	assert.Equal(t, "2-1", odds[0].Key)
	assert.Equal(t, model.Exacta, odds[0].BetType)
	assert.Equal(t, "1-2", odds[1].Key)
	assert.Equal(t, model.Quinella, odds[1].BetType)
}

func TestNormalizeResult(t *testing.T) {
	page := &source.ResultPage{
		Results: []source.ResultRow{
			{Bracket: 3, RankText: "1", PlayerName: "山田", Time: "11.2", WinningTechnique: "差"},
			{Bracket: 7, RankText: "落車", PlayerName: "佐藤"},
		},
		Comment: "  追い込み決着 ",
		LapSections: []source.LapSection{
			{Name: "打鐘", Riders: []source.LapRider{
				{Order: 1, Bracket: 3, Name: "山田", HasArrow: true},
				{Order: 2, Bracket: 7, Name: "佐藤"},
			}},
		},
		Inspections: []source.InspectionNote{
			{PlayerName: "佐藤", Text: "落車による棄権"},
		},
	}

	rs, err := NormalizeResult("cup1_1_1", model.RaceDecided, page)
	require.NoError(t, err)
	counts := rs.Counts()
	assert.Equal(t, 2, counts[store.KindRaceResult])
	assert.Equal(t, 1, counts[store.KindRaceComment])
	assert.Equal(t, 2, counts[store.KindLapPosition])
	assert.Equal(t, 1, counts[store.KindInspectionReport])
}

func TestNormalizeResultRequiresConcludedRace(t *testing.T) {
	_, err := NormalizeResult("cup1_1_1", model.RaceScheduled, &source.ResultPage{
		Results: []source.ResultRow{{Bracket: 1, RankText: "1"}},
	})
	require.Error(t, err)

	// Cancelled races are concluded too.
	_, err = NormalizeResult("cup1_1_1", model.RaceCancelled, &source.ResultPage{
		Results: []source.ResultRow{{Bracket: 1, RankText: "中止"}},
	})
	require.NoError(t, err)
}

func TestNormalizeResultEmptyPage(t *testing.T) {
	_, err := NormalizeResult("cup1_1_1", model.RaceDecided, &source.ResultPage{})
	require.Error(t, err)
}

func TestParseRank(t *testing.T) {
	assert.Equal(t, 1, parseRank("1"))
	assert.Equal(t, 9, parseRank(" 9 "))
	assert.Zero(t, parseRank("落車"))
	assert.Zero(t, parseRank("失格"))
	assert.Zero(t, parseRank("0"))
}

func TestNormalizeRaceStatusFallbacks(t *testing.T) {
	assert.Equal(t, model.RaceCancelled,
		normalizeRaceStatus(source.RawRace{Status: "decided", Cancel: true}))
	assert.Equal(t, model.RaceDecided,
		normalizeRaceStatus(source.RawRace{Status: "mystery", DecidedAt: 1709290000}))
	assert.Equal(t, model.RaceScheduled,
		normalizeRaceStatus(source.RawRace{Status: "mystery"}))
}
