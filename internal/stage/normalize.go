package stage

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/keirinlab/keirin-cli/internal/model"
	"github.com/keirinlab/keirin-cli/internal/source"
	"github.com/keirinlab/keirin-cli/internal/store"
)

// NormalizeMonth maps a monthly cup listing into venue and cup records.
// A month with no cups yields an empty set, which is a valid outcome; the
// caller still marks the scope done.
func NormalizeMonth(resp *source.MonthlyCupsResponse) *store.RecordSet {
	rs := store.NewRecordSet()

	for _, v := range resp.Venues {
		rs.AddVenues(model.Venue{
			ID:                    v.ID,
			Name:                  v.Name,
			Address:               v.Address,
			PhoneNumber:           v.PhoneNumber,
			WebsiteURL:            v.WebsiteURL,
			RegionID:              v.RegionID,
			TrackDistance:         v.TrackDistance,
			TrackStraightDistance: v.TrackStraightDistance,
			TrackAngleCenter:      v.TrackAngleCenter,
			TrackAngleStraight:    v.TrackAngleStraight,
			HomeWidth:             v.HomeWidth,
			BackWidth:             v.BackWidth,
			CenterWidth:           v.CenterWidth,
			BankFeature:           v.BankFeature,
		})
	}
	for _, c := range resp.Month.Cups {
		rs.AddCups(normalizeCup(c))
	}
	return rs
}

// NormalizeCupDetail maps a cup detail payload into the cup's own record,
// its schedules, and skeletal race records. Schedule and race identifiers
// are rebuilt from the stable schedule index so the same race always lands
// on the same row.
func NormalizeCupDetail(resp *source.CupDetailResponse) (*store.RecordSet, error) {
	if resp.Cup.ID == "" {
		return nil, eris.New("stage: cup detail without cup id")
	}
	rs := store.NewRecordSet()
	rs.AddCups(normalizeCup(resp.Cup))

	dates := make(map[int]string, len(resp.Schedules))
	for _, s := range resp.Schedules {
		dates[s.Index] = s.Date
		rs.AddSchedules(model.Schedule{
			ID:        model.ScheduleID(resp.Cup.ID, s.Index),
			CupID:     resp.Cup.ID,
			Date:      s.Date,
			Day:       s.Day,
			Index:     s.Index,
			Entryable: s.Entryable,
		})
	}

	for _, r := range resp.Races {
		race := normalizeRace(resp.Cup.ID, r)
		if race.Date == "" {
			race.Date = dates[r.ScheduleIndex]
		}
		rs.AddRaces(race)
	}
	return rs, nil
}

// NormalizeRaceDetail maps a race card into the full race record, the
// canonical player profiles, their per-race snapshots, the start list, the
// per-race statistics, and the flattened line prediction. While the start
// list is still unfixed every entry is marked provisional.
func NormalizeRaceDetail(cupID string, resp *source.RaceDetailResponse) (*store.RecordSet, error) {
	race := normalizeRace(cupID, resp.Race)
	if race.ID == "" {
		return nil, eris.New("stage: race detail without race id")
	}

	rs := store.NewRecordSet()
	rs.AddRaces(race)

	players := make(map[string]source.RawPlayer, len(resp.Players))
	for _, p := range resp.Players {
		players[p.ID] = p
		rs.AddPlayers(model.Player{
			ID:         p.ID,
			Name:       p.Name,
			Yomi:       p.Yomi,
			Birthday:   p.Birthday,
			Age:        p.Age,
			Gender:     p.Gender,
			Term:       p.Term,
			Class:      p.Class,
			Style:      p.Style,
			Prefecture: p.Prefecture,
		})
		rs.AddRacePlayers(model.RacePlayer{
			RaceID:     race.ID,
			PlayerID:   p.ID,
			Name:       p.Name,
			Age:        p.Age,
			Term:       p.Term,
			Class:      p.Class,
			Style:      p.Style,
			Prefecture: p.Prefecture,
		})
	}

	for _, e := range resp.Entries {
		entry := model.Entry{
			RaceID:        race.ID,
			Number:        e.Number,
			BracketNumber: e.BracketNumber,
			PlayerID:      e.PlayerID,
			Class:         e.Class,
			Style:         e.Style,
			Absent:        e.Absent,
			Provisional:   race.EntriesUnfixed,
		}
		// The entry payload omits attributes the player profile carries.
		if p, ok := players[e.PlayerID]; ok {
			if entry.Class == "" {
				entry.Class = p.Class
			}
			if entry.Style == "" {
				entry.Style = p.Style
			}
		}
		rs.AddEntries(entry)
	}

	for _, rec := range resp.Records {
		rs.AddPlayerRecords(model.PlayerRecord{
			RaceID:       race.ID,
			PlayerID:     rec.PlayerID,
			Gear:         rec.Gear,
			Comment:      rec.Comment,
			WinRate:      rec.WinRate,
			SecondRate:   rec.SecondRate,
			ThirdRate:    rec.ThirdRate,
			PredictMark:  rec.PredictMark,
			RacePoint:    rec.RacePoint,
			PreviousRank: rec.PreviousRank,
		})
	}

	for lineIdx, line := range resp.LinePrediction.Lines {
		for order, number := range line {
			rs.AddLinePredictions(model.LinePrediction{
				RaceID:     race.ID,
				Number:     number,
				LineNumber: lineIdx + 1,
				LineOrder:  order + 1,
				LineType:   resp.LinePrediction.LineType,
			})
		}
	}
	return rs, nil
}

// NormalizeOdds maps an odds payload into the race's status record plus one
// row per priced combination. A bet type absent from the payload contributes
// no rows, so combinations ingested earlier stay untouched.
func NormalizeOdds(raceID string, resp *source.OddsResponse) *store.RecordSet {
	raw := resp.Odds
	rs := store.NewRecordSet()

	payoff := make(map[model.BetType]string)
	for bt, status := range map[model.BetType]string{
		model.Exacta:          raw.ExactaPayoffStatus,
		model.Quinella:        raw.QuinellaPayoffStatus,
		model.QuinellaPlace:   raw.QuinellaPlacePayoffStatus,
		model.Trio:            raw.TrioPayoffStatus,
		model.Trifecta:        raw.TrifectaPayoffStatus,
		model.BracketExacta:   raw.BracketExactaPayoffStatus,
		model.BracketQuinella: raw.BracketQuinellaPayoffStatus,
	} {
		if status != "" {
			payoff[bt] = status
		}
	}
	if len(payoff) == 0 {
		payoff = nil
	}
	rs.AddOddsStatus(model.OddsStatus{
		RaceID:       raceID,
		PayoffStatus: payoff,
		IsAggregated: raw.IsAggregated,
		Delayed:      raw.OddsDelayed,
		Final:        raw.FinalOdds,
		UpdatedAt:    raw.UpdatedAt,
	})

	pools := map[model.BetType][]source.RawOddsItem{
		model.Exacta:          raw.Exacta,
		model.Quinella:        raw.Quinella,
		model.QuinellaPlace:   raw.QuinellaPlace,
		model.Trio:            raw.Trio,
		model.Trifecta:        raw.Trifecta,
		model.BracketExacta:   raw.BracketExacta,
		model.BracketQuinella: raw.BracketQuinella,
	}
	for _, bt := range model.BetTypes {
		for _, item := range pools[bt] {
			rs.AddOddsRows(model.OddsRow{
				RaceID:          raceID,
				BetType:         bt,
				Key:             bt.Combination(item.Key...),
				Odds:            item.Odds,
				MinOdds:         item.MinOdds,
				MaxOdds:         item.MaxOdds,
				OddsStr:         item.OddsStr,
				MinOddsStr:      item.MinOddsStr,
				MaxOddsStr:      item.MaxOddsStr,
				PopularityOrder: item.PopularityOrder,
				UnitPrice:       item.UnitPrice,
				PayoffUnitPrice: item.PayoffUnitPrice,
				Absent:          item.Absent,
			})
		}
	}
	return rs
}

// NormalizeResult maps a scraped result page into result rows, the race
// comment, the checkpoint positions, and the stewards' notes. Results only
// exist for concluded races; asking for anything else is a caller bug.
func NormalizeResult(raceID string, status model.RaceStatus, page *source.ResultPage) (*store.RecordSet, error) {
	if !status.Concluded() {
		return nil, eris.Errorf("stage: race %s is %s, results require a concluded race", raceID, status)
	}
	if len(page.Results) == 0 {
		return nil, eris.Wrapf(source.ErrParseFailure, "stage: race %s: result page has no finishing table", raceID)
	}

	rs := store.NewRecordSet()
	for _, row := range page.Results {
		rs.AddRaceResults(model.RaceResult{
			RaceID:           raceID,
			BracketNumber:    row.Bracket,
			Rank:             parseRank(row.RankText),
			RankText:         row.RankText,
			PlayerName:       row.PlayerName,
			Time:             row.Time,
			Diff:             row.Diff,
			LastLapTime:      row.LastLapTime,
			WinningTechnique: row.WinningTechnique,
			Symbols:          row.Symbols,
			PersonalStatus:   row.PersonalStatus,
		})
	}

	if c := strings.TrimSpace(page.Comment); c != "" {
		rs.AddRaceComment(model.RaceComment{RaceID: raceID, Comment: c})
	}

	for _, section := range page.LapSections {
		for _, rider := range section.Riders {
			rs.AddLapPositions(model.LapPosition{
				RaceID:        raceID,
				Section:       section.Name,
				BracketNumber: rider.Bracket,
				Order:         rider.Order,
				PlayerName:    rider.Name,
				HasArrow:      rider.HasArrow,
			})
		}
	}

	for _, note := range page.Inspections {
		rs.AddInspectionReports(model.InspectionReport{
			RaceID:     raceID,
			PlayerName: note.PlayerName,
			Text:       note.Text,
		})
	}
	return rs, nil
}

func normalizeCup(c source.RawCup) model.Cup {
	return model.Cup{
		ID:             c.ID,
		Name:           c.Name,
		StartDate:      c.StartDate,
		EndDate:        c.EndDate,
		Duration:       c.Duration,
		Grade:          c.Grade,
		VenueID:        c.VenueID,
		Labels:         c.Labels,
		PlayersUnfixed: c.PlayersUnfixed,
	}
}

func normalizeRace(cupID string, r source.RawRace) model.Race {
	return model.Race{
		ID:                  model.RaceID(cupID, r.ScheduleIndex, r.Number),
		ScheduleID:          model.ScheduleID(cupID, r.ScheduleIndex),
		CupID:               cupID,
		Number:              r.Number,
		Name:                r.Name,
		Date:                r.Date,
		Distance:            r.Distance,
		Lap:                 r.Lap,
		EntryCount:          r.EntriesNumber,
		Class:               r.Class,
		RaceType:            r.RaceType,
		RaceType3:           r.RaceType3,
		IsGrade:             r.IsGradeRace,
		Status:              normalizeRaceStatus(r),
		Weather:             r.Weather,
		WindSpeed:           r.WindSpeed,
		Cancelled:           r.Cancel,
		CancelReason:        r.CancelReason,
		StartAt:             r.StartAt,
		CloseAt:             r.CloseAt,
		DecidedAt:           r.DecidedAt,
		EntriesUnfixed:      r.EntriesUnfixed,
		HasDigestVideo:      r.HasDigestVideo,
		DigestVideo:         r.DigestVideo,
		DigestVideoProvider: r.DigestVideoProvider,
	}
}

// normalizeRaceStatus maps the wire status to the lifecycle enum. The
// cancel flag wins regardless of the reported status; an unreported status
// falls back to what the timestamps imply.
func normalizeRaceStatus(r source.RawRace) model.RaceStatus {
	if r.Cancel {
		return model.RaceCancelled
	}
	switch model.RaceStatus(r.Status) {
	case model.RaceScheduled, model.RaceClosed, model.RaceDecided, model.RaceCancelled:
		return model.RaceStatus(r.Status)
	}
	if r.DecidedAt > 0 {
		return model.RaceDecided
	}
	return model.RaceScheduled
}

func parseRank(text string) int {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 {
		return 0
	}
	return n
}
