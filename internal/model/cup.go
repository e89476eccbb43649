package model

// Cup is a multi-day meet held at one venue ("event" in source terms).
// A cup stays mutable until it concludes; labels and the players-unfixed
// flag are re-reported by the source while entries are still provisional.
type Cup struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	StartDate      string   `json:"start_date"` // YYYY-MM-DD
	EndDate        string   `json:"end_date"`
	Duration       int      `json:"duration,omitempty"`
	Grade          int      `json:"grade,omitempty"`
	VenueID        string   `json:"venue_id"`
	Labels         []string `json:"labels,omitempty"`
	PlayersUnfixed bool     `json:"players_unfixed"`
}

// Schedule is one calendar day within a cup. Index is the stable ordinal
// used for external addressing; Day is the day-of-event ordinal, which can
// shift when a day is cancelled or postponed.
type Schedule struct {
	ID     string `json:"id"`
	CupID  string `json:"cup_id"`
	Date   string `json:"date"` // YYYY-MM-DD
	Day    int    `json:"day"`
	Index  int    `json:"index"`
	Entryable bool `json:"entryable,omitempty"`
}
