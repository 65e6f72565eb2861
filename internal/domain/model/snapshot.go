// Package model contains domain models passed between layers.
package model

import (
	"strings"
)

// Status is the canonical match phase.
type Status int

// Canonical phases. Live covers every in-progress sub-phase the feed may
// report (half time, extra time, shootouts); only Scheduled -> Live -> Ended
// is modeled.
const (
	StatusUnknown Status = iota
	StatusScheduled
	StatusLive
	StatusEnded
)

// String returns the lower-case phase name.
func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusLive:
		return "live"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// ParseStatus maps a canonical phase name back to a Status.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scheduled":
		return StatusScheduled
	case "live":
		return StatusLive
	case "ended":
		return StatusEnded
	default:
		return StatusUnknown
	}
}

// Snapshot is one upstream-reported state of a match at poll time.
type Snapshot struct {
	ID           string // stable upstream match id
	Competition  string // league label, e.g. "epl"
	HomeName     string
	AwayName     string
	HomeScore    int
	AwayScore    int
	ClockMinutes int // 0 when not applicable
	Status       Status
}

// Validate rejects snapshots that must never reach the reconciler.
func (s Snapshot) Validate() error {
	switch {
	case strings.TrimSpace(s.ID) == "":
		return newValidationError(s.ID, "id", "must not be empty")
	case s.Status == StatusUnknown:
		return newValidationError(s.ID, "status", "unknown phase")
	case s.HomeScore < 0:
		return newValidationError(s.ID, "home_score", "must not be negative")
	case s.AwayScore < 0:
		return newValidationError(s.ID, "away_score", "must not be negative")
	case s.ClockMinutes < 0:
		return newValidationError(s.ID, "clock_minutes", "must not be negative")
	}
	return nil
}

// ScoreOrZero normalizes a nullable upstream score.
func ScoreOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
