package model

import "time"

// Metadata is the persisted record of collection progress — the sole source
// of truth for "what has already been collected". It is loaded at the start
// of every collector operation, passed through explicitly, and rewritten at
// the end of every successful fetch.
//
// Pointer fields are null in the JSON document until the first successful
// fetch, matching a first-run file created from defaults.
type Metadata struct {
	LastActivityFetch   *string `json:"last_activity_fetch"` // start date of the newest cached activity
	LastActivityID      *int64  `json:"last_activity_id"`
	ActivitiesWithKudos []int64 `json:"activities_with_kudos"`
	KudosFetchCompleted bool    `json:"kudos_fetch_completed"`
	TotalActivities     int     `json:"total_activities"`
	LastUpdated         *string `json:"last_updated"`
	LastRunID           string  `json:"last_run_id,omitempty"` // collector run that last wrote this file
}

// NewMetadata returns the first-run defaults.
func NewMetadata() Metadata {
	return Metadata{
		ActivitiesWithKudos: []int64{},
	}
}

// Touch bumps the last-updated timestamp and records the writing run.
func (m *Metadata) Touch(runID string) {
	now := time.Now().UTC().Format(time.RFC3339)
	m.LastUpdated = &now
	m.LastRunID = runID
}
