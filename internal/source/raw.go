package source

import "context"

// API is the JSON-source capability consumed by stages 1 through 4.
// Implementations return records shaped like the wire payload; all
// normalization happens in the stage normalizers.
type API interface {
	// FetchMonthlyCups returns the cup listing for the month containing date
	// (YYYY-MM-DD), with the venues and regions the listing references.
	FetchMonthlyCups(ctx context.Context, date string) (*MonthlyCupsResponse, error)

	// FetchCupDetail returns one cup with its schedules and skeletal races.
	FetchCupDetail(ctx context.Context, cupID string) (*CupDetailResponse, error)

	// FetchRaceDetail returns the full race card for one race.
	FetchRaceDetail(ctx context.Context, cupID string, scheduleIndex, raceNumber int) (*RaceDetailResponse, error)

	// FetchOdds returns the odds payload for one race.
	FetchOdds(ctx context.Context, cupID string, scheduleIndex, raceNumber int) (*OddsResponse, error)
}

// Scraper is the HTML-source capability consumed by stage 5.
type Scraper interface {
	FetchRaceResult(ctx context.Context, key ResultKey) (*ResultPage, error)
}

// ResultKey addresses one result page on the HTML site. The site keys pages
// by venue code and the cup's first day rather than by cup id.
type ResultKey struct {
	VenueCode    string // JKA venue code, e.g. "41"
	CupStartDate string // YYYY-MM-DD, first day of the cup
	RaceDate     string // YYYY-MM-DD
	RaceNumber   int
}

// --- Winticket wire shapes ---

// MonthlyCupsResponse is the cups listing payload
// (GET /keirin/cups?date=...&fields=month,venues,regions).
type MonthlyCupsResponse struct {
	Month struct {
		Cups []RawCup `json:"cups"`
	} `json:"month"`
	Venues  []RawVenue  `json:"venues"`
	Regions []RawRegion `json:"regions"`
}

// CupDetailResponse is the per-cup payload
// (GET /keirin/cups/{id}?fields=cup,schedules,races).
type CupDetailResponse struct {
	Cup       RawCup        `json:"cup"`
	Schedules []RawSchedule `json:"schedules"`
	Races     []RawRace     `json:"races"`
}

// RaceDetailResponse is the per-race payload
// (GET .../races/{no}?fields=race,entries,players,records,linePrediction).
type RaceDetailResponse struct {
	Race           RawRace           `json:"race"`
	Entries        []RawEntry        `json:"entries"`
	Players        []RawPlayer       `json:"players"`
	Records        []RawRecord       `json:"records"`
	LinePrediction RawLinePrediction `json:"linePrediction"`
}

// OddsResponse is the per-race odds payload (GET .../odds?fields=odds).
type OddsResponse struct {
	Odds RawOdds `json:"odds"`
}

type RawCup struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	StartDate      string   `json:"startDate"`
	EndDate        string   `json:"endDate"`
	Duration       int      `json:"duration"`
	Grade          int      `json:"grade"`
	VenueID        string   `json:"venueId"`
	Labels         []string `json:"labels"`
	PlayersUnfixed bool     `json:"playersUnfixed"`
}

type RawVenue struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	Address               string  `json:"address"`
	PhoneNumber           string  `json:"phoneNumber"`
	WebsiteURL            string  `json:"websiteUrl"`
	RegionID              string  `json:"regionId"`
	TrackDistance         int     `json:"trackDistance"`
	TrackStraightDistance float64 `json:"trackStraightDistance"`
	TrackAngleCenter      float64 `json:"trackAngleCenter"`
	TrackAngleStraight    float64 `json:"trackAngleStraight"`
	HomeWidth             float64 `json:"homeWidth"`
	BackWidth             float64 `json:"backWidth"`
	CenterWidth           float64 `json:"centerWidth"`
	BankFeature           string  `json:"bankFeature"`
}

type RawRegion struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RawSchedule struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Day       int    `json:"day"`
	Index     int    `json:"index"`
	Entryable bool   `json:"entryable"`
}

type RawRace struct {
	ID             string  `json:"id"`
	Number         int     `json:"number"`
	Name           string  `json:"name"`
	Date           string  `json:"date"`
	ScheduleIndex  int     `json:"scheduleIndex"`
	Distance       int     `json:"distance"`
	Lap            int     `json:"lap"`
	EntriesNumber  int     `json:"entriesNumber"`
	Class          string  `json:"class"`
	RaceType       string  `json:"raceType"`
	RaceType3      string  `json:"raceType3"`
	IsGradeRace    bool    `json:"isGradeRace"`
	Status         string  `json:"status"`
	Weather        string  `json:"weather"`
	WindSpeed      float64 `json:"windSpeed"`
	Cancel         bool    `json:"cancel"`
	CancelReason   string  `json:"cancelReason"`
	StartAt        int64   `json:"startAt"`
	CloseAt        int64   `json:"closeAt"`
	DecidedAt      int64   `json:"decidedAt"`
	EntriesUnfixed bool    `json:"entriesUnfixed"`

	HasDigestVideo      bool   `json:"hasDigestVideo"`
	DigestVideo         string `json:"digestVideo"`
	DigestVideoProvider string `json:"digestVideoProvider"`
}

type RawEntry struct {
	Number        int    `json:"number"`
	BracketNumber int    `json:"bracketNumber"`
	PlayerID      string `json:"playerId"`
	Class         string `json:"class"`
	Style         string `json:"style"`
	Absent        bool   `json:"absent"`
}

type RawPlayer struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Yomi       string `json:"yomi"`
	Birthday   string `json:"birthday"`
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	Term       string `json:"term"`
	Class      string `json:"class"`
	Style      string `json:"style"`
	Prefecture string `json:"prefecture"`
}

type RawRecord struct {
	PlayerID     string  `json:"playerId"`
	Gear         float64 `json:"gear"`
	Comment      string  `json:"comment"`
	WinRate      float64 `json:"winRate"`
	SecondRate   float64 `json:"secondRate"`
	ThirdRate    float64 `json:"thirdRate"`
	PredictMark  string  `json:"predictMark"`
	RacePoint    float64 `json:"racePoint"`
	PreviousRank int     `json:"previousRank"`
}

// RawLinePrediction groups car numbers into expected lines, front to back
// within each line.
type RawLinePrediction struct {
	LineType string  `json:"lineType"`
	Lines    [][]int `json:"lines"`
}

// RawOdds carries every bet-type list plus the payoff status flags. A bet
// type the race does not offer is absent (nil slice).
type RawOdds struct {
	UpdatedAt    int64 `json:"updatedAt"`
	IsAggregated bool  `json:"isAggregated"`
	OddsDelayed  bool  `json:"oddsDelayed"`
	FinalOdds    bool  `json:"finalOdds"`

	ExactaPayoffStatus          string `json:"exactaPayoffStatus"`
	QuinellaPayoffStatus        string `json:"quinellaPayoffStatus"`
	QuinellaPlacePayoffStatus   string `json:"quinellaPlacePayoffStatus"`
	TrioPayoffStatus            string `json:"trioPayoffStatus"`
	TrifectaPayoffStatus        string `json:"trifectaPayoffStatus"`
	BracketExactaPayoffStatus   string `json:"bracketExactaPayoffStatus"`
	BracketQuinellaPayoffStatus string `json:"bracketQuinellaPayoffStatus"`

	Exacta          []RawOddsItem `json:"exacta"`
	Quinella        []RawOddsItem `json:"quinella"`
	QuinellaPlace   []RawOddsItem `json:"quinellaPlace"`
	Trio            []RawOddsItem `json:"trio"`
	Trifecta        []RawOddsItem `json:"trifecta"`
	BracketExacta   []RawOddsItem `json:"bracketExacta"`
	BracketQuinella []RawOddsItem `json:"bracketQuinella"`
}

type RawOddsItem struct {
	Key             []int   `json:"key"`
	Type            string  `json:"type"`
	Odds            float64 `json:"odds"`
	MinOdds         float64 `json:"minOdds"`
	MaxOdds         float64 `json:"maxOdds"`
	OddsStr         string  `json:"oddsStr"`
	MinOddsStr      string  `json:"minOddsStr"`
	MaxOddsStr      string  `json:"maxOddsStr"`
	PopularityOrder int     `json:"popularityOrder"`
	UnitPrice       int     `json:"unitPrice"`
	PayoffUnitPrice float64 `json:"payoffUnitPrice"`
	Absent          bool    `json:"absent"`
}

// --- Yenjoy scrape shapes ---

// ResultPage is the parsed result page for one race.
type ResultPage struct {
	Results     []ResultRow
	Comment     string
	LapSections []LapSection
	Inspections []InspectionNote
}

// ResultRow is one row of the finishing table, as printed.
type ResultRow struct {
	Bracket          int
	RankText         string
	PlayerName       string
	Time             string
	Diff             string
	LastLapTime      string
	WinningTechnique string
	Symbols          string
	PersonalStatus   string
}

// LapSection is one checkpoint diagram (周回, 赤板, 打鐘, HS, BS).
type LapSection struct {
	Name   string
	Riders []LapRider
}

// LapRider is one rider's slot in a checkpoint diagram, front to back.
type LapRider struct {
	Order    int
	Bracket  int
	Name     string
	HasArrow bool
}

// InspectionNote is one stewards' comment.
type InspectionNote struct {
	PlayerName string
	Text       string
}
