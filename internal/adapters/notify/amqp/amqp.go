// Package amqp publishes events to a topic exchange.
package amqp

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/streadway/amqp"
)

const (
	defaultExchange = "scoreline.events"
	heartbeat       = 30 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // shared codec

// Publisher is the slice of *amqp.Channel the sink uses.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Sink publishes one persistent JSON message per event with routing key
// "<competition>.<kind>", e.g. "epl.goal_scored".
type Sink struct {
	pub      Publisher
	exchange string
	closers  []func() error
}

// New dials the broker and declares a durable topic exchange.
func New(url, exchange string) (*Sink, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp: %w", notify.ErrNotConfigured)
	}
	if exchange == "" {
		exchange = defaultExchange
	}
	conn, err := amqp.DialConfig(url, amqp.Config{Heartbeat: heartbeat, Locale: "en_US"})
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", exchange, err)
	}
	s := NewWithPublisher(ch, exchange)
	s.closers = []func() error{ch.Close, conn.Close}
	return s, nil
}

// NewWithPublisher creates a sink over an existing channel.
func NewWithPublisher(pub Publisher, exchange string) *Sink {
	if exchange == "" {
		exchange = defaultExchange
	}
	return &Sink{pub: pub, exchange: exchange}
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "amqp" }

// Render builds the shared event card.
func (s *Sink) Render(ev model.Event) notify.Message { return notify.Render(ev) } //nolint:gocritic // hugeParam

// Send publishes the event payload. The client library has no context
// support, so ctx is only checked before publishing.
func (s *Sink) Send(ctx context.Context, msg notify.Message) error { //nolint:gocritic // hugeParam
	if err := ctx.Err(); err != nil {
		return notify.Wrap(s.Name(), err)
	}
	body, err := json.Marshal(notify.NewPayload(&msg))
	if err != nil {
		return notify.Wrap(s.Name(), fmt.Errorf("marshal: %w", err))
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    string(msg.Event.Fingerprint),
		Timestamp:    msg.Timestamp,
		Type:         msg.Event.Kind.String(),
		Body:         body,
	}
	if err := s.pub.Publish(s.exchange, notify.RoutingKey(msg.Event), false, false, pub); err != nil {
		return notify.Wrap(s.Name(), err)
	}
	return nil
}

// Close closes the channel and the connection.
func (s *Sink) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
