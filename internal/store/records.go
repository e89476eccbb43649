package store

import (
	"encoding/json"

	"github.com/keirinlab/keirin-cli/internal/model"
)

// Row is one record's payload values, aligned with the kind's column list.
type Row []any

type recordBatch struct {
	kind Kind
	rows []Row
}

// RecordSet is the normalized output of one stage for one work item. The
// upsert engine applies a whole set as a single atomic unit, in the order
// batches were added (callers add parents before children).
type RecordSet struct {
	batches []recordBatch
}

// NewRecordSet creates an empty record set.
func NewRecordSet() *RecordSet { return &RecordSet{} }

// Empty reports whether the set contains no rows.
func (rs *RecordSet) Empty() bool { return rs.Rows() == 0 }

// Rows returns the total row count across all batches.
func (rs *RecordSet) Rows() int {
	n := 0
	for _, b := range rs.batches {
		n += len(b.rows)
	}
	return n
}

// Counts returns the number of rows per kind, for run logging.
func (rs *RecordSet) Counts() map[Kind]int {
	out := make(map[Kind]int)
	for _, b := range rs.batches {
		out[b.kind] += len(b.rows)
	}
	return out
}

func (rs *RecordSet) add(kind Kind, rows ...Row) {
	if len(rows) == 0 {
		return
	}
	// Extend the previous batch when kinds match; keeps batch order stable.
	if n := len(rs.batches); n > 0 && rs.batches[n-1].kind == kind {
		rs.batches[n-1].rows = append(rs.batches[n-1].rows, rows...)
		return
	}
	rs.batches = append(rs.batches, recordBatch{kind: kind, rows: rows})
}

func (rs *RecordSet) AddVenues(vs ...model.Venue) {
	for _, v := range vs {
		rs.add(KindVenue, Row{
			v.ID, v.Name, v.Address, v.PhoneNumber, v.WebsiteURL, v.RegionID,
			v.TrackDistance, v.TrackStraightDistance, v.TrackAngleCenter,
			v.TrackAngleStraight, v.HomeWidth, v.BackWidth, v.CenterWidth,
			v.BankFeature,
		})
	}
}

func (rs *RecordSet) AddCups(cs ...model.Cup) {
	for _, c := range cs {
		labels, _ := json.Marshal(c.Labels)
		rs.add(KindCup, Row{
			c.ID, c.Name, c.StartDate, c.EndDate, c.Duration, c.Grade,
			c.VenueID, string(labels), c.PlayersUnfixed,
		})
	}
}

func (rs *RecordSet) AddSchedules(ss ...model.Schedule) {
	for _, s := range ss {
		rs.add(KindSchedule, Row{
			s.ID, s.CupID, s.Date, s.Day, s.Index, s.Entryable,
		})
	}
}

func (rs *RecordSet) AddRaces(races ...model.Race) {
	for _, r := range races {
		rs.add(KindRace, Row{
			r.ID, r.ScheduleID, r.CupID, r.Number, r.Name, r.Date,
			r.Distance, r.Lap, r.EntryCount, r.Class, r.RaceType, r.RaceType3,
			r.IsGrade, string(r.Status), r.Weather, r.WindSpeed,
			r.Cancelled, r.CancelReason, r.StartAt, r.CloseAt, r.DecidedAt,
			r.EntriesUnfixed, r.HasDigestVideo, r.DigestVideo, r.DigestVideoProvider,
		})
	}
}

func (rs *RecordSet) AddPlayers(ps ...model.Player) {
	for _, p := range ps {
		rs.add(KindPlayer, Row{
			p.ID, p.Name, p.Yomi, p.Birthday, p.Age, p.Gender, p.Term,
			p.Class, p.Style, p.Prefecture,
		})
	}
}

func (rs *RecordSet) AddRacePlayers(ps ...model.RacePlayer) {
	for _, p := range ps {
		rs.add(KindRacePlayer, Row{
			p.RaceID, p.PlayerID, p.Name, p.Age, p.Term, p.Class, p.Style, p.Prefecture,
		})
	}
}

func (rs *RecordSet) AddEntries(es ...model.Entry) {
	for _, e := range es {
		rs.add(KindEntry, Row{
			e.RaceID, e.Number, e.BracketNumber, e.PlayerID, e.Class, e.Style,
			e.Absent, e.Provisional,
		})
	}
}

func (rs *RecordSet) AddPlayerRecords(recs ...model.PlayerRecord) {
	for _, r := range recs {
		rs.add(KindPlayerRecord, Row{
			r.RaceID, r.PlayerID, r.Gear, r.Comment, r.WinRate, r.SecondRate,
			r.ThirdRate, r.PredictMark, r.RacePoint, r.PreviousRank,
		})
	}
}

func (rs *RecordSet) AddLinePredictions(ls ...model.LinePrediction) {
	for _, l := range ls {
		rs.add(KindLinePrediction, Row{
			l.RaceID, l.Number, l.LineNumber, l.LineOrder, l.LineType,
		})
	}
}

func (rs *RecordSet) AddOddsStatus(s model.OddsStatus) {
	payoff, _ := json.Marshal(s.PayoffStatus)
	rs.add(KindOddsStatus, Row{
		s.RaceID, string(payoff), s.IsAggregated, s.Delayed, s.Final, s.UpdatedAt,
	})
}

func (rs *RecordSet) AddOddsRows(rows ...model.OddsRow) {
	for _, o := range rows {
		rs.add(KindOdds, Row{
			o.RaceID, string(o.BetType), o.Key, o.Odds, o.MinOdds, o.MaxOdds,
			o.OddsStr, o.MinOddsStr, o.MaxOddsStr, o.PopularityOrder,
			o.UnitPrice, o.PayoffUnitPrice, o.Absent,
		})
	}
}

func (rs *RecordSet) AddRaceResults(results ...model.RaceResult) {
	for _, r := range results {
		rs.add(KindRaceResult, Row{
			r.RaceID, r.BracketNumber, r.Rank, r.RankText, r.PlayerName,
			r.Time, r.Diff, r.LastLapTime, r.WinningTechnique, r.Symbols,
			r.PersonalStatus,
		})
	}
}

func (rs *RecordSet) AddRaceComment(c model.RaceComment) {
	rs.add(KindRaceComment, Row{c.RaceID, c.Comment})
}

func (rs *RecordSet) AddLapPositions(ls ...model.LapPosition) {
	for _, l := range ls {
		rs.add(KindLapPosition, Row{
			l.RaceID, l.Section, l.BracketNumber, l.LapNumber, l.Order,
			l.PlayerName, l.HasArrow, l.X, l.Y,
		})
	}
}

func (rs *RecordSet) AddInspectionReports(reports ...model.InspectionReport) {
	for _, r := range reports {
		rs.add(KindInspectionReport, Row{r.RaceID, r.PlayerName, r.Text})
	}
}
