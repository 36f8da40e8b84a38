// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Activity is one logged workout session as returned by the
// /athlete/activities endpoint, plus a handful of derived fields computed
// at ingestion time.
//
// The `json:"..."` tags match the remote API's field names, so the struct
// decodes straight out of the response body. The API returns a much larger
// object — we only unmarshal the fields we analyse.
//
// Nullable statistics (heart rate, speed) are pointers: the API omits them
// for activities recorded without the relevant sensor, and 0 would be a
// misleading stand-in for "not measured".
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	StartDate          time.Time `json:"start_date"` // ISO-8601, always UTC from the API
	Distance           float64   `json:"distance"`   // meters
	MovingTime         int64     `json:"moving_time"` // seconds
	ElapsedTime        int64     `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"` // meters
	KudosCount         int       `json:"kudos_count"`
	CommentCount       int       `json:"comment_count"`
	AthleteCount       int       `json:"athlete_count"`
	PhotoCount         int       `json:"photo_count"`
	TotalPhotoCount    int       `json:"total_photo_count"`
	AverageSpeed       *float64  `json:"average_speed"` // m/s
	MaxSpeed           *float64  `json:"max_speed"`
	AverageHeartrate   *float64  `json:"average_heartrate"` // bpm
	MaxHeartrate       *float64  `json:"max_heartrate"`
	PRCount            int       `json:"pr_count"`
	AchievementCount   int       `json:"achievement_count"`
	Visibility         string    `json:"visibility"`
	Commute            bool      `json:"commute"`
	Manual             bool      `json:"manual"`
	Private            bool      `json:"private"`
	Flagged            bool      `json:"flagged"`

	// Derived fields — not part of the API payload, filled in by Derive().
	HasPhotos       bool    `json:"-"`
	DayOfWeek       int     `json:"-"` // 0 = Monday ... 6 = Sunday
	HourOfDay       int     `json:"-"`
	DistanceKm      float64 `json:"-"`
	MovingTimeHours float64 `json:"-"`
	PaceMinPerKm    float64 `json:"-"` // 0 when distance is zero
	SpeedKmh        float64 `json:"-"`
}

// Derive fills in the computed columns from the raw API fields. Called once
// at ingestion; cached rows already carry the derived values.
func (a *Activity) Derive() {
	a.HasPhotos = a.TotalPhotoCount > 0

	if !a.StartDate.IsZero() {
		utc := a.StartDate.UTC()
		// time.Weekday counts Sunday as 0; the analysis columns count Monday as 0.
		a.DayOfWeek = (int(utc.Weekday()) + 6) % 7
		a.HourOfDay = utc.Hour()
	}

	a.DistanceKm = a.Distance / 1000
	a.MovingTimeHours = float64(a.MovingTime) / 3600

	if a.DistanceKm > 0 {
		a.PaceMinPerKm = float64(a.MovingTime) / 60 / a.DistanceKm
	} else {
		a.PaceMinPerKm = 0
	}
	if a.MovingTimeHours > 0 {
		a.SpeedKmh = a.DistanceKm / a.MovingTimeHours
	} else {
		a.SpeedKmh = 0
	}
}
