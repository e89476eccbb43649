package model

// Player is the canonical profile row for a competitor. The source re-reports
// some attributes per appearance, so per-race snapshots live in RacePlayer
// while this row keeps the latest reported profile.
type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Yomi       string `json:"yomi,omitempty"`
	Birthday   string `json:"birthday,omitempty"`
	Age        int    `json:"age,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Term       string `json:"term,omitempty"`
	Class      string `json:"class,omitempty"`
	Style      string `json:"style,omitempty"`
	Prefecture string `json:"prefecture,omitempty"`
}

// RacePlayer is the attribute snapshot of a player as reported for one race.
type RacePlayer struct {
	RaceID     string `json:"race_id"`
	PlayerID   string `json:"player_id"`
	Name       string `json:"name"`
	Age        int    `json:"age,omitempty"`
	Term       string `json:"term,omitempty"`
	Class      string `json:"class,omitempty"`
	Style      string `json:"style,omitempty"`
	Prefecture string `json:"prefecture,omitempty"`
}

// Entry assigns a player to a car number within a race. Exactly one entry
// exists per (race, number); Absent marks withdrawals, Provisional marks
// entries published while the start list was still unfixed.
type Entry struct {
	RaceID      string `json:"race_id"`
	Number      int    `json:"number"`
	BracketNumber int  `json:"bracket_number,omitempty"`
	PlayerID    string `json:"player_id"`
	Class       string `json:"class,omitempty"`
	Style       string `json:"style,omitempty"`
	Absent      bool   `json:"absent,omitempty"`
	Provisional bool   `json:"provisional,omitempty"`
}

// PlayerRecord carries per-(race, player) performance statistics and
// prediction markers. It is optional and arrives later than the entry itself.
type PlayerRecord struct {
	RaceID       string  `json:"race_id"`
	PlayerID     string  `json:"player_id"`
	Gear         float64 `json:"gear,omitempty"`
	Comment      string  `json:"comment,omitempty"`
	WinRate      float64 `json:"win_rate,omitempty"`
	SecondRate   float64 `json:"second_rate,omitempty"`
	ThirdRate    float64 `json:"third_rate,omitempty"`
	PredictMark  string  `json:"predict_mark,omitempty"`
	RacePoint    float64 `json:"race_point,omitempty"`
	PreviousRank int     `json:"previous_rank,omitempty"`
}

// LinePrediction is the expected line formation for a race: which car
// numbers ride together and in what order within the line.
type LinePrediction struct {
	RaceID     string `json:"race_id"`
	Number     int    `json:"number"`      // car number
	LineNumber int    `json:"line_number"` // which line the car belongs to
	LineOrder  int    `json:"line_order"`  // position within the line
	LineType   string `json:"line_type,omitempty"`
}
