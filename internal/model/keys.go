package model

import "fmt"

// Identifiers are composed from natural keys so that re-ingesting the same
// source data always addresses the same rows.
//
//	cup id:      assigned by the source (start date + venue + sequence)
//	schedule id: <cup id>_<index>
//	race id:     <cup id>_<index>_<race number>

// ScheduleID builds the schedule identifier from its parent cup and the
// stable schedule index. The index survives cancellations and postponements,
// which is why it is used for addressing instead of the day ordinal.
func ScheduleID(cupID string, index int) string {
	return fmt.Sprintf("%s_%d", cupID, index)
}

// RaceID builds the race identifier from its parent schedule and race number.
func RaceID(cupID string, scheduleIndex, raceNumber int) string {
	return fmt.Sprintf("%s_%d_%d", cupID, scheduleIndex, raceNumber)
}
