package model

import (
	"sort"
	"strconv"
	"strings"
)

// BetType enumerates the wagering pools the source offers per race.
type BetType string

const (
	Exacta          BetType = "exacta"
	Quinella        BetType = "quinella"
	QuinellaPlace   BetType = "quinella_place"
	Trio            BetType = "trio"
	Trifecta        BetType = "trifecta"
	BracketExacta   BetType = "bracket_exacta"
	BracketQuinella BetType = "bracket_quinella"
)

// BetTypes lists every bet type in a stable order.
var BetTypes = []BetType{
	Exacta, Quinella, QuinellaPlace, Trio, Trifecta, BracketExacta, BracketQuinella,
}

// OrderSensitive reports whether the order of participants matters for the
// combination key. Exacta-style pools distinguish 1-2 from 2-1; quinella-style
// pools do not.
func (b BetType) OrderSensitive() bool {
	switch b {
	case Exacta, Trifecta, BracketExacta:
		return true
	default:
		return false
	}
}

// Combination canonicalizes participant numbers into the combination key used
// as part of the odds-row natural key. Order-insensitive bet types sort the
// numbers first so that the same selection always maps to the same row.
func (b BetType) Combination(numbers ...int) string {
	ns := make([]int, len(numbers))
	copy(ns, numbers)
	if !b.OrderSensitive() {
		sort.Ints(ns)
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "-")
}

// OddsRow is one priced combination within a bet-type pool.
type OddsRow struct {
	RaceID          string  `json:"race_id"`
	BetType         BetType `json:"bet_type"`
	Key             string  `json:"key"` // canonical combination, e.g. "1-3-7"
	Odds            float64 `json:"odds"`
	MinOdds         float64 `json:"min_odds,omitempty"`
	MaxOdds         float64 `json:"max_odds,omitempty"`
	OddsStr         string  `json:"odds_str,omitempty"`
	MinOddsStr      string  `json:"min_odds_str,omitempty"`
	MaxOddsStr      string  `json:"max_odds_str,omitempty"`
	PopularityOrder int     `json:"popularity_order,omitempty"`
	UnitPrice       int     `json:"unit_price,omitempty"`
	PayoffUnitPrice float64 `json:"payoff_unit_price,omitempty"`
	Absent          bool    `json:"absent,omitempty"`
}

// OddsStatus tracks per-race odds finality: provisional, optionally delayed,
// then final. Final is terminal; once final, odds rows for the race are not
// expected to change.
type OddsStatus struct {
	RaceID string `json:"race_id"`

	PayoffStatus map[BetType]string `json:"payoff_status,omitempty"`

	IsAggregated bool  `json:"is_aggregated,omitempty"`
	Delayed      bool  `json:"delayed,omitempty"`
	Final        bool  `json:"final,omitempty"`
	UpdatedAt    int64 `json:"updated_at,omitempty"` // source-reported, unix seconds
}

// State returns the status-machine label for the current flags.
func (s OddsStatus) State() string {
	switch {
	case s.Final:
		return "final"
	case s.Delayed:
		return "delayed"
	default:
		return "provisional"
	}
}
