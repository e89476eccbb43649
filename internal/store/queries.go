package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/keirinlab/keirin-cli/internal/model"
)

// RaceSummary is a race joined with its cup and venue names for listing.
type RaceSummary struct {
	model.Race
	CupName   string `json:"cup_name"`
	VenueID   string `json:"venue_id"`
	VenueName string `json:"venue_name"`
}

// RaceResultView bundles everything the result stage stores for one race.
type RaceResultView struct {
	Results     []model.RaceResult       `json:"results"`
	Comment     string                   `json:"comment,omitempty"`
	Laps        []model.LapPosition      `json:"laps,omitempty"`
	Inspections []model.InspectionReport `json:"inspections,omitempty"`
}

// RacesOn lists the races held on a date (YYYY-MM-DD), ordered by cup and
// race number.
func (p *Partition) RacesOn(ctx context.Context, date string) ([]RaceSummary, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT r.id, r.schedule_id, r.cup_id, r.number, COALESCE(r.name, ''),
			r.date, COALESCE(r.distance, 0), COALESCE(r.entry_count, 0),
			COALESCE(r.class, ''), r.status, r.cancelled,
			COALESCE(r.start_at, 0), COALESCE(r.close_at, 0), COALESCE(r.decided_at, 0),
			c.name, c.venue_id, v.name
		FROM races r
		JOIN cups c ON c.id = r.cup_id
		JOIN venues v ON v.id = c.venue_id
		WHERE r.date = ?
		ORDER BY c.id, r.number`, date)
	if err != nil {
		return nil, eris.Wrapf(err, "store: races on %s", date)
	}
	defer rows.Close()

	var out []RaceSummary
	for rows.Next() {
		var s RaceSummary
		var cancelled int
		if err := rows.Scan(&s.ID, &s.ScheduleID, &s.CupID, &s.Number, &s.Name,
			&s.Date, &s.Distance, &s.EntryCount, &s.Class, &s.Status, &cancelled,
			&s.StartAt, &s.CloseAt, &s.DecidedAt,
			&s.CupName, &s.VenueID, &s.VenueName); err != nil {
			return nil, eris.Wrap(err, "store: scan race summary")
		}
		s.Cancelled = cancelled != 0
		out = append(out, s)
	}
	return out, eris.Wrap(rows.Err(), "store: races on date")
}

// EntriesForRace returns the start list of a race in car-number order.
func (p *Partition) EntriesForRace(ctx context.Context, raceID string) ([]model.Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT race_id, number, COALESCE(bracket_number, 0), player_id,
			COALESCE(class, ''), COALESCE(style, ''), absent, provisional
		FROM entries WHERE race_id = ? ORDER BY number`, raceID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: entries %s", raceID)
	}
	defer rows.Close()

	var out []model.Entry
	for rows.Next() {
		var e model.Entry
		var absent, provisional int
		if err := rows.Scan(&e.RaceID, &e.Number, &e.BracketNumber, &e.PlayerID,
			&e.Class, &e.Style, &absent, &provisional); err != nil {
			return nil, eris.Wrap(err, "store: scan entry")
		}
		e.Absent = absent != 0
		e.Provisional = provisional != 0
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "store: entries")
}

// OddsForRace returns the race's odds status and every priced combination.
// A nil status means no odds have been ingested for the race.
func (p *Partition) OddsForRace(ctx context.Context, raceID string) (*model.OddsStatus, []model.OddsRow, error) {
	var (
		status  model.OddsStatus
		payoff  sql.NullString
		srcTime sql.NullInt64
		agg     int
		delayed int
		final   int
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT race_id, payoff_status, is_aggregated, delayed, final, source_updated_at
		FROM odds_statuses WHERE race_id = ?`, raceID).
		Scan(&status.RaceID, &payoff, &agg, &delayed, &final, &srcTime)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil, nil
	case err != nil:
		return nil, nil, eris.Wrapf(err, "store: odds status %s", raceID)
	}
	status.IsAggregated = agg != 0
	status.Delayed = delayed != 0
	status.Final = final != 0
	status.UpdatedAt = srcTime.Int64
	if payoff.Valid && payoff.String != "" {
		if err := json.Unmarshal([]byte(payoff.String), &status.PayoffStatus); err != nil {
			return nil, nil, eris.Wrapf(err, "store: payoff status %s", raceID)
		}
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT race_id, bet_type, key, COALESCE(odds, 0),
			COALESCE(min_odds, 0), COALESCE(max_odds, 0),
			COALESCE(odds_str, ''), COALESCE(min_odds_str, ''), COALESCE(max_odds_str, ''),
			COALESCE(popularity_order, 0), COALESCE(unit_price, 0),
			COALESCE(payoff_unit_price, 0), absent
		FROM odds WHERE race_id = ?
		ORDER BY bet_type, key`, raceID)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "store: odds rows %s", raceID)
	}
	defer rows.Close()

	var out []model.OddsRow
	for rows.Next() {
		var r model.OddsRow
		var absent int
		if err := rows.Scan(&r.RaceID, &r.BetType, &r.Key, &r.Odds,
			&r.MinOdds, &r.MaxOdds, &r.OddsStr, &r.MinOddsStr, &r.MaxOddsStr,
			&r.PopularityOrder, &r.UnitPrice, &r.PayoffUnitPrice, &absent); err != nil {
			return nil, nil, eris.Wrap(err, "store: scan odds row")
		}
		r.Absent = absent != 0
		out = append(out, r)
	}
	return &status, out, eris.Wrap(rows.Err(), "store: odds rows")
}

// ResultForRace returns the stored result for a race, or nil when no result
// has been ingested.
func (p *Partition) ResultForRace(ctx context.Context, raceID string) (*RaceResultView, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT race_id, bracket_number, COALESCE(rank, 0), COALESCE(rank_text, ''),
			COALESCE(player_name, ''), COALESCE(time, ''), COALESCE(diff, ''),
			COALESCE(last_lap_time, ''), COALESCE(winning_technique, ''),
			COALESCE(symbols, ''), COALESCE(personal_status, '')
		FROM race_results WHERE race_id = ? ORDER BY rank, bracket_number`, raceID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: results %s", raceID)
	}
	defer rows.Close()

	view := &RaceResultView{}
	for rows.Next() {
		var r model.RaceResult
		if err := rows.Scan(&r.RaceID, &r.BracketNumber, &r.Rank, &r.RankText,
			&r.PlayerName, &r.Time, &r.Diff, &r.LastLapTime,
			&r.WinningTechnique, &r.Symbols, &r.PersonalStatus); err != nil {
			return nil, eris.Wrap(err, "store: scan result")
		}
		view.Results = append(view.Results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: results")
	}
	if len(view.Results) == 0 {
		return nil, nil
	}

	var comment sql.NullString
	err = p.db.QueryRowContext(ctx,
		`SELECT comment FROM race_comments WHERE race_id = ?`, raceID).Scan(&comment)
	if err != nil && err != sql.ErrNoRows {
		return nil, eris.Wrapf(err, "store: comment %s", raceID)
	}
	view.Comment = comment.String

	lapRows, err := p.db.QueryContext(ctx, `
		SELECT race_id, section, bracket_number, COALESCE(lap_number, 0),
			COALESCE(ord, 0), COALESCE(player_name, ''), has_arrow,
			COALESCE(x, 0), COALESCE(y, 0)
		FROM lap_positions WHERE race_id = ? ORDER BY section, ord`, raceID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: laps %s", raceID)
	}
	defer lapRows.Close()
	for lapRows.Next() {
		var l model.LapPosition
		var arrow int
		if err := lapRows.Scan(&l.RaceID, &l.Section, &l.BracketNumber,
			&l.LapNumber, &l.Order, &l.PlayerName, &arrow, &l.X, &l.Y); err != nil {
			return nil, eris.Wrap(err, "store: scan lap")
		}
		l.HasArrow = arrow != 0
		view.Laps = append(view.Laps, l)
	}
	if err := lapRows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: laps")
	}

	insRows, err := p.db.QueryContext(ctx, `
		SELECT race_id, player_name, COALESCE(text, '')
		FROM inspection_reports WHERE race_id = ? ORDER BY player_name`, raceID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: inspections %s", raceID)
	}
	defer insRows.Close()
	for insRows.Next() {
		var n model.InspectionReport
		if err := insRows.Scan(&n.RaceID, &n.PlayerName, &n.Text); err != nil {
			return nil, eris.Wrap(err, "store: scan inspection")
		}
		view.Inspections = append(view.Inspections, n)
	}
	return view, eris.Wrap(insRows.Err(), "store: inspections")
}
