package notify

import (
	"time"

	"github.com/okian/scoreline/internal/domain/model"
)

// Payload is the JSON document published by machine-facing sinks
// (AMQP, MQTT, websocket, webhook journal).
type Payload struct {
	Kind         string    `json:"kind"`
	MatchID      string    `json:"match_id"`
	Competition  string    `json:"competition"`
	HomeName     string    `json:"home_name"`
	AwayName     string    `json:"away_name"`
	HomeScore    int       `json:"home_score"`
	AwayScore    int       `json:"away_score"`
	ClockMinutes int       `json:"clock_minutes"`
	Fingerprint  string    `json:"fingerprint"`
	Text         string    `json:"text"`
	EmittedAt    time.Time `json:"emitted_at"`
}

// NewPayload builds the JSON document for a rendered message.
func NewPayload(msg *Message) Payload {
	ev := msg.Event
	return Payload{
		Kind:         ev.Kind.String(),
		MatchID:      ev.MatchID,
		Competition:  ev.Competition,
		HomeName:     ev.HomeName,
		AwayName:     ev.AwayName,
		HomeScore:    ev.HomeScore,
		AwayScore:    ev.AwayScore,
		ClockMinutes: ev.ClockMinutes,
		Fingerprint:  string(ev.Fingerprint),
		Text:         Plain(msg.Text()),
		EmittedAt:    msg.Timestamp,
	}
}

// RoutingKey is the topic suffix for an event: "<competition>.<kind>".
func RoutingKey(ev model.Event) string { //nolint:gocritic // hugeParam: events are passed by value
	comp := ev.Competition
	if comp == "" {
		comp = "unknown"
	}
	return comp + "." + ev.Kind.String()
}
