// Package logsink writes events to the structured log. It is always
// registered so every announcement leaves a trace.
package logsink

import (
	"context"

	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/pkg/logger"
)

// Sink logs every event at info level.
type Sink struct {
	log logger.Logger
}

// New creates a log sink; a nil l uses the global "events" logger.
func New(l logger.Logger) *Sink {
	if l == nil {
		l = logger.Get().Named("events")
	}
	return &Sink{log: l}
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "log" }

// Render builds the shared event card.
func (s *Sink) Render(ev model.Event) notify.Message { return notify.Render(ev) } //nolint:gocritic // hugeParam

// Send writes one structured line for the event.
func (s *Sink) Send(ctx context.Context, msg notify.Message) error { //nolint:gocritic // hugeParam
	ev := msg.Event
	s.log.Info(ctx, notify.Plain(msg.Title),
		logger.String("kind", ev.Kind.String()),
		logger.String("match_id", ev.MatchID),
		logger.String("competition", ev.Competition),
		logger.String("score", notify.Plain(msg.Headline)),
		logger.Int("minute", ev.ClockMinutes),
		logger.String("fingerprint", string(ev.Fingerprint)),
	)
	return nil
}
