// Package stage turns raw source payloads into normalized record sets and
// names the five ingestion stages.
package stage

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Stage is one step of the ingestion pipeline. Later stages depend on the
// entities earlier stages discover.
type Stage int

const (
	StageDiscovery  Stage = iota + 1 // monthly cup listing, venues
	StageCupDetail                   // schedules and skeletal races per cup
	StageRaceDetail                  // entries, players, records, lines
	StageOdds                        // odds snapshot per race
	StageResult                      // scraped results per decided race
)

// AllStages lists every stage in dependency order.
var AllStages = []Stage{
	StageDiscovery, StageCupDetail, StageRaceDetail, StageOdds, StageResult,
}

func (s Stage) String() string {
	switch s {
	case StageDiscovery:
		return "discovery"
	case StageCupDetail:
		return "cup-detail"
	case StageRaceDetail:
		return "race-detail"
	case StageOdds:
		return "odds"
	case StageResult:
		return "result"
	default:
		return "unknown"
	}
}

// ParseStages converts a selector like "1-5", "3", or "1,2,4" into an
// ordered, deduplicated stage list.
func ParseStages(s string) ([]Stage, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return append([]Stage{}, AllStages...), nil
	}

	seen := make(map[Stage]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			from, err := parseStage(lo)
			if err != nil {
				return nil, err
			}
			to, err := parseStage(hi)
			if err != nil {
				return nil, err
			}
			if to < from {
				return nil, eris.Errorf("invalid stage range: %q", part)
			}
			for st := from; st <= to; st++ {
				seen[st] = true
			}
			continue
		}
		st, err := parseStage(part)
		if err != nil {
			return nil, err
		}
		seen[st] = true
	}

	out := make([]Stage, 0, len(seen))
	for st := range seen {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func parseStage(s string) (Stage, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > len(AllStages) {
		return 0, eris.Errorf("unknown stage: %q (valid: 1-%d)", s, len(AllStages))
	}
	return Stage(n), nil
}
