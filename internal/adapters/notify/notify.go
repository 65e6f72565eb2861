// Package notify defines notification sinks and the default event rendering.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/scoreline/internal/domain/model"
)

// Card colours, matching Discord's palette.
const (
	ColorGreen = 0x2ECC71
	ColorBlue  = 0x3498DB
)

// Sink delivers rendered events to one destination.
//
// Send failures are reported to the dispatcher and never reach the
// reconciler. Sinks holding connections also implement io.Closer.
type Sink interface {
	Name() string
	Render(ev model.Event) Message
	Send(ctx context.Context, msg Message) error
}

// Field is a labelled value shown on a card.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Message is the transport-neutral rendering of an event.
type Message struct {
	Title     string      `json:"title"`
	Headline  string      `json:"headline"`
	Fields    []Field     `json:"fields,omitempty"`
	Footer    string      `json:"footer,omitempty"`
	Color     int         `json:"color"`
	Timestamp time.Time   `json:"timestamp"`
	Event     model.Event `json:"-"`
}

// Text flattens the message for plain-text transports.
func (m *Message) Text() string {
	var b strings.Builder
	b.WriteString(m.Title)
	b.WriteByte('\n')
	b.WriteString(m.Headline)
	for _, f := range m.Fields {
		fmt.Fprintf(&b, "\n%s: %s", f.Name, f.Value)
	}
	if m.Footer != "" {
		b.WriteString("\n")
		b.WriteString(m.Footer)
	}
	return b.String()
}

// Render builds the default GOAL / FULL TIME card.
func Render(ev model.Event) Message { //nolint:gocritic // hugeParam: events are passed by value
	msg := Message{
		Headline:  fmt.Sprintf("**%s %d - %d %s**", ev.HomeName, ev.HomeScore, ev.AwayScore, ev.AwayName),
		Timestamp: time.Now().UTC(),
		Event:     ev,
	}
	league := Field{Name: "League", Value: strings.ToUpper(ev.Competition), Inline: true}

	switch ev.Kind {
	case model.KindGoalScored:
		msg.Title = "⚽ GOAL!"
		msg.Color = ColorGreen
		msg.Footer = "Real-time update"
		msg.Fields = []Field{league, {Name: "Time", Value: fmt.Sprintf("%d'", ev.ClockMinutes), Inline: true}}
	case model.KindMatchEnded:
		msg.Title = "⚪ FULL TIME"
		msg.Color = ColorBlue
		msg.Footer = "Match Ended"
		msg.Fields = []Field{league}
	default:
		msg.Title = ev.Kind.String()
		msg.Fields = []Field{league}
	}
	return msg
}

// Plain strips the markdown emphasis Render puts on the headline.
func Plain(s string) string {
	return strings.ReplaceAll(s, "**", "")
}
