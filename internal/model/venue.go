package model

// Venue is a keirin velodrome. Venues are created or updated whenever a
// source mentions one and are never deleted.
type Venue struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	Address               string  `json:"address,omitempty"`
	PhoneNumber           string  `json:"phone_number,omitempty"`
	WebsiteURL            string  `json:"website_url,omitempty"`
	RegionID              string  `json:"region_id,omitempty"`
	TrackDistance         int     `json:"track_distance,omitempty"`
	TrackStraightDistance float64 `json:"track_straight_distance,omitempty"`
	TrackAngleCenter      float64 `json:"track_angle_center,omitempty"`
	TrackAngleStraight    float64 `json:"track_angle_straight,omitempty"`
	HomeWidth             float64 `json:"home_width,omitempty"`
	BackWidth             float64 `json:"back_width,omitempty"`
	CenterWidth           float64 `json:"center_width,omitempty"`
	BankFeature           string  `json:"bank_feature,omitempty"`
}
