package model

import (
	"hash/fnv"
	"strings"
)

// Giver is one entry from the /activities/{id}/kudos endpoint. The API
// exposes only the giver's name on this endpoint — no stable athlete id.
type Giver struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// KudosRecord is one (activity, giver) pair. The natural key is
// (ActivityID, AthleteID), where AthleteID is synthetic — see
// SyntheticAthleteID for the limitation that implies.
type KudosRecord struct {
	ActivityID int64
	AthleteID  int64
	Firstname  string
	Lastname   string
	Fullname   string
}

// NewKudosRecord builds a record for one giver of kudos on an activity.
func NewKudosRecord(activityID int64, g Giver) KudosRecord {
	fullname := strings.TrimSpace(g.Firstname + " " + g.Lastname)
	return KudosRecord{
		ActivityID: activityID,
		AthleteID:  SyntheticAthleteID(fullname),
		Firstname:  g.Firstname,
		Lastname:   g.Lastname,
		Fullname:   fullname,
	}
}

// SyntheticAthleteID derives a stand-in athlete id from the giver's full
// name, because the kudos endpoint does not expose a real one.
//
// FNV-1a is stable across runs and processes, so the same name always maps
// to the same id. The modulus keeps the id in an 8-digit range. Two distinct
// givers with an identical full name WILL collide — treat the id as a
// best-effort grouping key, never as a global identity.
func SyntheticAthleteID(fullname string) int64 {
	h := fnv.New64a()
	h.Write([]byte(fullname))
	return int64(h.Sum64() % 100_000_000)
}
