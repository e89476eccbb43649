package model

// RaceStatus is the lifecycle of a race as reported by the source.
type RaceStatus string

const (
	RaceScheduled RaceStatus = "scheduled"
	RaceClosed    RaceStatus = "closed"
	RaceDecided   RaceStatus = "decided"
	RaceCancelled RaceStatus = "cancelled"
)

// Concluded reports whether result data can exist for a race in this status.
// Cancellation is terminal; decided races carry immutable result fields.
func (s RaceStatus) Concluded() bool {
	return s == RaceDecided || s == RaceCancelled
}

// Race is a single contest within a schedule.
type Race struct {
	ID         string     `json:"id"`
	ScheduleID string     `json:"schedule_id"`
	CupID      string     `json:"cup_id"`
	Number     int        `json:"number"`
	Name       string     `json:"name,omitempty"`
	Date       string     `json:"date"` // YYYY-MM-DD
	Distance   int        `json:"distance,omitempty"`
	Lap        int        `json:"lap,omitempty"`
	EntryCount int        `json:"entry_count,omitempty"`
	Class      string     `json:"class,omitempty"`
	RaceType   string     `json:"race_type,omitempty"`
	RaceType3  string     `json:"race_type3,omitempty"`
	IsGrade    bool       `json:"is_grade,omitempty"`
	Status     RaceStatus `json:"status"`
	Weather    string     `json:"weather,omitempty"`
	WindSpeed  float64    `json:"wind_speed,omitempty"`
	Cancelled  bool       `json:"cancelled,omitempty"`
	CancelReason string   `json:"cancel_reason,omitempty"`

	// Unix seconds; zero when the source has not reported the timestamp yet.
	StartAt   int64 `json:"start_at,omitempty"`
	CloseAt   int64 `json:"close_at,omitempty"`
	DecidedAt int64 `json:"decided_at,omitempty"`

	EntriesUnfixed bool `json:"entries_unfixed,omitempty"`

	HasDigestVideo      bool   `json:"has_digest_video,omitempty"`
	DigestVideo         string `json:"digest_video,omitempty"`
	DigestVideoProvider string `json:"digest_video_provider,omitempty"`
}
