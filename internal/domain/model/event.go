package model

import (
	"strconv"
	"strings"
)

// Kind identifies a semantic match event.
type Kind int

// Event kinds. The numeric order is the intra-match emission order.
const (
	KindGoalScored Kind = iota + 1
	KindMatchEnded
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindGoalScored:
		return "goal_scored"
	case KindMatchEnded:
		return "match_ended"
	default:
		return "unknown"
	}
}

// Fingerprint is the at-most-once key of an event.
type Fingerprint string

// GoalFingerprint is derived from the match id and the score pair after the goal.
func GoalFingerprint(matchID string, home, away int) Fingerprint {
	var b strings.Builder
	b.WriteString(matchID)
	b.WriteByte('|')
	b.WriteString(KindGoalScored.String())
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(home))
	b.WriteByte('-')
	b.WriteString(strconv.Itoa(away))
	return Fingerprint(b.String())
}

// EndedFingerprint is derived from the match id alone.
func EndedFingerprint(matchID string) Fingerprint {
	return Fingerprint(matchID + "|" + KindMatchEnded.String())
}

// Event is a detected state transition worth announcing. It carries
// everything a sink needs to render it without looking anything up.
type Event struct {
	Kind         Kind
	MatchID      string
	Competition  string
	HomeName     string
	AwayName     string
	HomeScore    int
	AwayScore    int
	ClockMinutes int
	Fingerprint  Fingerprint
}

// NewEvent builds an event of kind k from a snapshot and stamps its fingerprint.
func NewEvent(k Kind, s Snapshot) Event { //nolint:gocritic // hugeParam: snapshots are passed by value
	e := Event{
		Kind:         k,
		MatchID:      s.ID,
		Competition:  s.Competition,
		HomeName:     s.HomeName,
		AwayName:     s.AwayName,
		HomeScore:    s.HomeScore,
		AwayScore:    s.AwayScore,
		ClockMinutes: s.ClockMinutes,
	}
	switch k {
	case KindGoalScored:
		e.Fingerprint = GoalFingerprint(s.ID, s.HomeScore, s.AwayScore)
	case KindMatchEnded:
		e.Fingerprint = EndedFingerprint(s.ID)
	}
	return e
}
