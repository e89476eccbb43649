package store

// Kind identifies one entity table.
type Kind string

const (
	KindVenue            Kind = "venues"
	KindCup              Kind = "cups"
	KindSchedule         Kind = "schedules"
	KindRace             Kind = "races"
	KindPlayer           Kind = "players"
	KindRacePlayer       Kind = "race_players"
	KindEntry            Kind = "entries"
	KindPlayerRecord     Kind = "player_records"
	KindLinePrediction   Kind = "line_predictions"
	KindOddsStatus       Kind = "odds_statuses"
	KindOdds             Kind = "odds"
	KindRaceResult       Kind = "race_results"
	KindRaceComment      Kind = "race_comments"
	KindLapPosition      Kind = "lap_positions"
	KindInspectionReport Kind = "inspection_reports"
)

// kinds lists every entity kind in referential dependency order: a kind never
// references a kind that appears after it. Consolidation and batch application
// walk this order so foreign keys are always satisfiable.
var kinds = []Kind{
	KindVenue, KindCup, KindSchedule, KindRace,
	KindPlayer, KindRacePlayer, KindEntry, KindPlayerRecord, KindLinePrediction,
	KindOddsStatus, KindOdds,
	KindRaceResult, KindRaceComment, KindLapPosition, KindInspectionReport,
}

// kindSpec describes one table: its payload columns (always starting with the
// natural key), the key columns, and the columns excluded from conflict
// updates because they are identity-derived and never change.
type kindSpec struct {
	table     string
	columns   []string
	key       []string
	immutable []string
}

// mutableColumns returns the columns compared and rewritten on conflict.
func (s kindSpec) mutableColumns() []string {
	skip := make(map[string]bool, len(s.key)+len(s.immutable))
	for _, c := range s.key {
		skip[c] = true
	}
	for _, c := range s.immutable {
		skip[c] = true
	}
	var out []string
	for _, c := range s.columns {
		if !skip[c] {
			out = append(out, c)
		}
	}
	return out
}

var kindSpecs = map[Kind]kindSpec{
	KindVenue: {
		table: "venues",
		columns: []string{
			"id", "name", "address", "phone_number", "website_url", "region_id",
			"track_distance", "track_straight_distance", "track_angle_center",
			"track_angle_straight", "home_width", "back_width", "center_width",
			"bank_feature",
		},
		key: []string{"id"},
	},
	KindCup: {
		table: "cups",
		columns: []string{
			"id", "name", "start_date", "end_date", "duration", "grade",
			"venue_id", "labels", "players_unfixed",
		},
		key:       []string{"id"},
		immutable: []string{"start_date", "venue_id"},
	},
	KindSchedule: {
		table: "schedules",
		columns: []string{
			"id", "cup_id", "date", "day", "idx", "entryable",
		},
		key:       []string{"id"},
		immutable: []string{"cup_id", "idx"},
	},
	KindRace: {
		table: "races",
		columns: []string{
			"id", "schedule_id", "cup_id", "number", "name", "date",
			"distance", "lap", "entry_count", "class", "race_type", "race_type3",
			"is_grade", "status", "weather", "wind_speed",
			"cancelled", "cancel_reason", "start_at", "close_at", "decided_at",
			"entries_unfixed", "has_digest_video", "digest_video", "digest_video_provider",
		},
		key:       []string{"id"},
		immutable: []string{"schedule_id", "cup_id", "number"},
	},
	KindPlayer: {
		table: "players",
		columns: []string{
			"id", "name", "yomi", "birthday", "age", "gender", "term",
			"class", "style", "prefecture",
		},
		key: []string{"id"},
	},
	KindRacePlayer: {
		table: "race_players",
		columns: []string{
			"race_id", "player_id", "name", "age", "term", "class", "style", "prefecture",
		},
		key: []string{"race_id", "player_id"},
	},
	KindEntry: {
		table: "entries",
		columns: []string{
			"race_id", "number", "bracket_number", "player_id", "class", "style",
			"absent", "provisional",
		},
		key: []string{"race_id", "number"},
	},
	KindPlayerRecord: {
		table: "player_records",
		columns: []string{
			"race_id", "player_id", "gear", "comment", "win_rate", "second_rate",
			"third_rate", "predict_mark", "race_point", "previous_rank",
		},
		key: []string{"race_id", "player_id"},
	},
	KindLinePrediction: {
		table: "line_predictions",
		columns: []string{
			"race_id", "number", "line_number", "line_order", "line_type",
		},
		key: []string{"race_id", "number"},
	},
	KindOddsStatus: {
		table: "odds_statuses",
		columns: []string{
			"race_id", "payoff_status", "is_aggregated", "delayed", "final", "source_updated_at",
		},
		key: []string{"race_id"},
	},
	KindOdds: {
		table: "odds",
		columns: []string{
			"race_id", "bet_type", "key", "odds", "min_odds", "max_odds",
			"odds_str", "min_odds_str", "max_odds_str", "popularity_order",
			"unit_price", "payoff_unit_price", "absent",
		},
		key: []string{"race_id", "bet_type", "key"},
	},
	KindRaceResult: {
		table: "race_results",
		columns: []string{
			"race_id", "bracket_number", "rank", "rank_text", "player_name",
			"time", "diff", "last_lap_time", "winning_technique", "symbols",
			"personal_status",
		},
		key: []string{"race_id", "bracket_number"},
	},
	KindRaceComment: {
		table: "race_comments",
		columns: []string{
			"race_id", "comment",
		},
		key: []string{"race_id"},
	},
	KindLapPosition: {
		table: "lap_positions",
		columns: []string{
			"race_id", "section", "bracket_number", "lap_number", "ord",
			"player_name", "has_arrow", "x", "y",
		},
		key: []string{"race_id", "section", "bracket_number"},
	},
	KindInspectionReport: {
		table: "inspection_reports",
		columns: []string{
			"race_id", "player_name", "text",
		},
		key: []string{"race_id", "player_name"},
	},
}

// Every table carries updated_at (unix milliseconds, set by the upsert
// engine) so the consolidator can resolve cross-partition duplicates by
// last write.
const migration = `
CREATE TABLE IF NOT EXISTS venues (
	id                      TEXT PRIMARY KEY,
	name                    TEXT NOT NULL,
	address                 TEXT,
	phone_number            TEXT,
	website_url             TEXT,
	region_id               TEXT,
	track_distance          INTEGER,
	track_straight_distance REAL,
	track_angle_center      REAL,
	track_angle_straight    REAL,
	home_width              REAL,
	back_width              REAL,
	center_width            REAL,
	bank_feature            TEXT,
	updated_at              INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cups (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	start_date      TEXT NOT NULL,
	end_date        TEXT,
	duration        INTEGER,
	grade           INTEGER,
	venue_id        TEXT NOT NULL REFERENCES venues(id),
	labels          TEXT,
	players_unfixed INTEGER NOT NULL DEFAULT 0,
	updated_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schedules (
	id         TEXT PRIMARY KEY,
	cup_id     TEXT NOT NULL REFERENCES cups(id) ON DELETE CASCADE,
	date       TEXT NOT NULL,
	day        INTEGER NOT NULL,
	idx        INTEGER NOT NULL,
	entryable  INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS races (
	id                    TEXT PRIMARY KEY,
	schedule_id           TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
	cup_id                TEXT NOT NULL REFERENCES cups(id) ON DELETE CASCADE,
	number                INTEGER NOT NULL,
	name                  TEXT,
	date                  TEXT NOT NULL,
	distance              INTEGER,
	lap                   INTEGER,
	entry_count           INTEGER,
	class                 TEXT,
	race_type             TEXT,
	race_type3            TEXT,
	is_grade              INTEGER NOT NULL DEFAULT 0,
	status                TEXT NOT NULL,
	weather               TEXT,
	wind_speed            REAL,
	cancelled             INTEGER NOT NULL DEFAULT 0,
	cancel_reason         TEXT,
	start_at              INTEGER,
	close_at              INTEGER,
	decided_at            INTEGER,
	entries_unfixed       INTEGER NOT NULL DEFAULT 0,
	has_digest_video      INTEGER NOT NULL DEFAULT 0,
	digest_video          TEXT,
	digest_video_provider TEXT,
	updated_at            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS players (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	yomi       TEXT,
	birthday   TEXT,
	age        INTEGER,
	gender     TEXT,
	term       TEXT,
	class      TEXT,
	style      TEXT,
	prefecture TEXT,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS race_players (
	race_id    TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
	player_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	age        INTEGER,
	term       TEXT,
	class      TEXT,
	style      TEXT,
	prefecture TEXT,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (race_id, player_id)
);

CREATE TABLE IF NOT EXISTS entries (
	race_id        TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
	number         INTEGER NOT NULL,
	bracket_number INTEGER,
	player_id      TEXT NOT NULL,
	class          TEXT,
	style          TEXT,
	absent         INTEGER NOT NULL DEFAULT 0,
	provisional    INTEGER NOT NULL DEFAULT 0,
	updated_at     INTEGER NOT NULL,
	PRIMARY KEY (race_id, number)
);

CREATE TABLE IF NOT EXISTS player_records (
	race_id       TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
	player_id     TEXT NOT NULL,
	gear          REAL,
	comment       TEXT,
	win_rate      REAL,
	second_rate   REAL,
	third_rate    REAL,
	predict_mark  TEXT,
	race_point    REAL,
	previous_rank INTEGER,
	updated_at    INTEGER NOT NULL,
	PRIMARY KEY (race_id, player_id)
);

CREATE TABLE IF NOT EXISTS line_predictions (
	race_id     TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
	number      INTEGER NOT NULL,
	line_number INTEGER NOT NULL,
	line_order  INTEGER NOT NULL,
	line_type   TEXT,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (race_id, number)
);

CREATE TABLE IF NOT EXISTS odds_statuses (
	race_id           TEXT PRIMARY KEY REFERENCES races(id) ON DELETE CASCADE,
	payoff_status     TEXT,
	is_aggregated     INTEGER NOT NULL DEFAULT 0,
	delayed           INTEGER NOT NULL DEFAULT 0,
	final             INTEGER NOT NULL DEFAULT 0,
	source_updated_at INTEGER,
	updated_at        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS odds (
	race_id           TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
	bet_type          TEXT NOT NULL,
	key               TEXT NOT NULL,
	odds              REAL,
	min_odds          REAL,
	max_odds          REAL,
	odds_str          TEXT,
	min_odds_str      TEXT,
	max_odds_str      TEXT,
	popularity_order  INTEGER,
	unit_price        INTEGER,
	payoff_unit_price REAL,
	absent            INTEGER NOT NULL DEFAULT 0,
	updated_at        INTEGER NOT NULL,
	PRIMARY KEY (race_id, bet_type, key)
);

CREATE TABLE IF NOT EXISTS race_results (
	race_id           TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
	bracket_number    INTEGER NOT NULL,
	rank              INTEGER,
	rank_text         TEXT,
	player_name       TEXT,
	time              TEXT,
	diff              TEXT,
	last_lap_time     TEXT,
	winning_technique TEXT,
	symbols           TEXT,
	personal_status   TEXT,
	updated_at        INTEGER NOT NULL,
	PRIMARY KEY (race_id, bracket_number)
);

CREATE TABLE IF NOT EXISTS race_comments (
	race_id    TEXT PRIMARY KEY REFERENCES races(id) ON DELETE CASCADE,
	comment    TEXT,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS lap_positions (
	race_id        TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
	section        TEXT NOT NULL,
	bracket_number INTEGER NOT NULL,
	lap_number     INTEGER,
	ord            INTEGER,
	player_name    TEXT,
	has_arrow      INTEGER NOT NULL DEFAULT 0,
	x              INTEGER,
	y              INTEGER,
	updated_at     INTEGER NOT NULL,
	PRIMARY KEY (race_id, section, bracket_number)
);

CREATE TABLE IF NOT EXISTS inspection_reports (
	race_id     TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
	player_name TEXT NOT NULL,
	text        TEXT,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (race_id, player_name)
);

CREATE INDEX IF NOT EXISTS idx_cups_start_date ON cups(start_date);
CREATE INDEX IF NOT EXISTS idx_schedules_cup ON schedules(cup_id);
CREATE INDEX IF NOT EXISTS idx_schedules_date ON schedules(date);
CREATE INDEX IF NOT EXISTS idx_races_cup ON races(cup_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_player ON entries(race_id, player_id) WHERE absent = 0;
CREATE INDEX IF NOT EXISTS idx_races_date ON races(date);
CREATE INDEX IF NOT EXISTS idx_races_status ON races(status);
CREATE INDEX IF NOT EXISTS idx_odds_race ON odds(race_id);
`
