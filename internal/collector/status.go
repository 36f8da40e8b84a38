package collector

import (
	"fmt"
	"sort"
	"time"

	"github.com/sakif/kudoscope/internal/model"
	"github.com/sakif/kudoscope/internal/store"
)

// TypeCount is one activity type and how many cached activities carry it.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Status summarizes the cached dataset without fetching anything.
type Status struct {
	TotalActivities     int            `json:"total_activities"`
	ActivitiesWithKudos int            `json:"activities_with_kudos"`
	TotalKudos          int            `json:"total_kudos"`
	OldestActivity      string         `json:"oldest_activity,omitempty"`
	NewestActivity      string         `json:"newest_activity,omitempty"`
	TopTypes            []TypeCount    `json:"top_activity_types,omitempty"`
	Metadata            model.Metadata `json:"metadata"`
}

// BuildStatus computes a Status from the cache. Package-level so the
// read-only report server can reuse it without constructing a Collector.
func BuildStatus(st store.Store) (Status, error) {
	activities, err := st.LoadActivities()
	if err != nil {
		return Status{}, fmt.Errorf("loading activities: %w", err)
	}
	kudos, err := st.LoadKudos()
	if err != nil {
		return Status{}, fmt.Errorf("loading kudos: %w", err)
	}
	meta, err := st.LoadMetadata()
	if err != nil {
		return Status{}, fmt.Errorf("loading metadata: %w", err)
	}

	withKudos := make(map[int64]bool)
	for _, rec := range kudos {
		withKudos[rec.ActivityID] = true
	}

	status := Status{
		TotalActivities:     len(activities),
		ActivitiesWithKudos: len(withKudos),
		TotalKudos:          len(kudos),
		Metadata:            meta,
	}

	if len(activities) > 0 {
		oldest, newest := activities[0].StartDate, activities[0].StartDate
		counts := make(map[string]int)
		for _, a := range activities {
			if a.StartDate.Before(oldest) {
				oldest = a.StartDate
			}
			if a.StartDate.After(newest) {
				newest = a.StartDate
			}
			counts[a.Type]++
		}
		status.OldestActivity = oldest.UTC().Format(time.RFC3339)
		status.NewestActivity = newest.UTC().Format(time.RFC3339)
		status.TopTypes = topTypes(counts, 5)
	}
	return status, nil
}

// Status is the method form used by cmd/collect.
func (c *Collector) Status() (Status, error) {
	return BuildStatus(c.store)
}

func topTypes(counts map[string]int, n int) []TypeCount {
	out := make([]TypeCount, 0, len(counts))
	for t, count := range counts {
		out = append(out, TypeCount{Type: t, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
