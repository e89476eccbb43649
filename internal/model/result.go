package model

// RaceResult is the scraped finishing record for one bracket within a race.
// Results are written only after the race is decided and are immutable
// inputs for anything downstream.
type RaceResult struct {
	RaceID           string `json:"race_id"`
	BracketNumber    int    `json:"bracket_number"`
	Rank             int    `json:"rank"`          // 0 when the rank is non-numeric (DNF etc.)
	RankText         string `json:"rank_text"`     // as printed, e.g. "1", "落車"
	PlayerName       string `json:"player_name,omitempty"`
	Time             string `json:"time,omitempty"`
	Diff             string `json:"diff,omitempty"`
	LastLapTime      string `json:"last_lap_time,omitempty"`
	WinningTechnique string `json:"winning_technique,omitempty"`
	Symbols          string `json:"symbols,omitempty"`
	PersonalStatus   string `json:"personal_status,omitempty"`
}

// RaceComment is the free-text commentary printed with a race result.
type RaceComment struct {
	RaceID  string `json:"race_id"`
	Comment string `json:"comment"`
}

// LapPosition is one rider's position at one section of the race
// (sections are the lap checkpoints: 周回, 赤板, 打鐘, HS, BS).
type LapPosition struct {
	RaceID      string `json:"race_id"`
	Section     string `json:"section"`
	LapNumber   int    `json:"lap_number,omitempty"`
	Order       int    `json:"order"` // position within the section, front to back
	BracketNumber int  `json:"bracket_number"`
	PlayerName  string `json:"player_name,omitempty"`
	HasArrow    bool   `json:"has_arrow,omitempty"`
	X           int    `json:"x,omitempty"`
	Y           int    `json:"y,omitempty"`
}

// InspectionReport is a per-player stewards' comment scraped from the
// result page.
type InspectionReport struct {
	RaceID     string `json:"race_id"`
	PlayerName string `json:"player_name"`
	Text       string `json:"text"`
}
