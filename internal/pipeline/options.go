package pipeline

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/keirinlab/keirin-cli/internal/stage"
)

// Mode selects how the date range of a run is derived.
type Mode string

const (
	// ModeSingleDay ingests one calendar day (default: today).
	ModeSingleDay Mode = "single-day"
	// ModePeriod ingests an explicit range (default: yesterday through
	// tomorrow, which catches late results and early cards in one run).
	ModePeriod Mode = "period"
	// ModeFullHistory ingests everything from the history start date to
	// today, resuming past completed scopes.
	ModeFullHistory Mode = "full-history"
)

// ParseMode validates a mode flag value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSingleDay, ModePeriod, ModeFullHistory:
		return Mode(s), nil
	default:
		return "", eris.Errorf("unknown mode: %q (valid: single-day, period, full-history)", s)
	}
}

// Options selects what one update run covers.
type Options struct {
	Mode   Mode
	Date   string // single-day anchor, YYYY-MM-DD
	From   string // period start, YYYY-MM-DD
	To     string // period end, YYYY-MM-DD
	Stages []stage.Stage
	Venues []string // venue ids or JKA codes; empty means all
	Force  bool
	DryRun bool
}

const dateLayout = "2006-01-02"

// Race days follow the Japanese calendar regardless of where the ingester
// runs.
var jst = time.FixedZone("JST", 9*60*60)

// DateRange resolves the mode into inclusive [from, to] bounds. now is the
// reference clock, historyStart the configured full-history floor.
func (o Options) DateRange(now time.Time, historyStart string) (string, string, error) {
	today := now.In(jst).Format(dateLayout)

	switch o.Mode {
	case ModeSingleDay:
		day := o.Date
		if day == "" {
			day = today
		}
		if _, err := time.Parse(dateLayout, day); err != nil {
			return "", "", eris.Errorf("invalid date: %q", o.Date)
		}
		return day, day, nil

	case ModePeriod:
		from, to := o.From, o.To
		if from == "" {
			from = now.In(jst).AddDate(0, 0, -1).Format(dateLayout)
		}
		if to == "" {
			to = now.In(jst).AddDate(0, 0, 1).Format(dateLayout)
		}
		if _, err := time.Parse(dateLayout, from); err != nil {
			return "", "", eris.Errorf("invalid from date: %q", o.From)
		}
		if _, err := time.Parse(dateLayout, to); err != nil {
			return "", "", eris.Errorf("invalid to date: %q", o.To)
		}
		if to < from {
			return "", "", eris.Errorf("period end %s precedes start %s", to, from)
		}
		return from, to, nil

	case ModeFullHistory:
		if _, err := time.Parse(dateLayout, historyStart); err != nil {
			return "", "", eris.Errorf("invalid history start: %q", historyStart)
		}
		return historyStart, today, nil

	default:
		return "", "", eris.Errorf("unknown mode: %q", o.Mode)
	}
}

// datesBetween expands inclusive bounds into individual days.
func datesBetween(from, to string) []string {
	start, _ := time.ParseInLocation(dateLayout, from, jst)
	end, _ := time.ParseInLocation(dateLayout, to, jst)

	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(dateLayout))
	}
	return out
}

// monthOf truncates a date to its YYYY-MM month key.
func monthOf(date string) string { return date[:7] }
