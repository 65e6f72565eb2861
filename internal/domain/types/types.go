// Package types contains common types used across the application
package types

import "github.com/okian/scoreline/internal/domain/model"

// Record is the state kept per tracked match.
type Record struct {
	Last        model.Snapshot // most recently accepted snapshot
	Announced   int            // number of announced fingerprints
	MissedPolls int            // consecutive polls without the match
	EndedPolls  int            // accepted polls observed in the ended phase
}

// MatchView is the read-only shape of a tracked match served by the ops API.
type MatchView struct {
	MatchID      string `json:"match_id"`
	Competition  string `json:"competition"`
	HomeName     string `json:"home_name"`
	AwayName     string `json:"away_name"`
	HomeScore    int    `json:"home_score"`
	AwayScore    int    `json:"away_score"`
	ClockMinutes int    `json:"clock_minutes"`
	Status       string `json:"status"`
	Announced    int    `json:"announced"`    // fingerprints recorded for the match
	MissedPolls  int    `json:"missed_polls"` // consecutive polls the match was absent
	EndedPolls   int    `json:"ended_polls"`  // accepted polls spent in the ended phase
}
