// Package mqtt publishes events to an MQTT broker.
package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/domain/model"
)

const (
	defaultTopic      = "scoreline/events"
	qosAtLeastOnce    = 1
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // shared codec

// Publisher is the slice of mqtt.Client the sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// Sink publishes JSON payloads to "<topic>/<competition>/<kind>" at QoS 1.
type Sink struct {
	pub   Publisher
	topic string
	close func()
}

// New connects to broker. clientID defaults to a time-based id.
func New(broker, topic, clientID string) (*Sink, error) {
	if broker == "" {
		return nil, fmt.Errorf("mqtt: %w", notify.ErrNotConfigured)
	}
	if clientID == "" {
		clientID = fmt.Sprintf("scoreline_%d", time.Now().Unix())
	}
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)

	client := pahomqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out", broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	s := NewWithPublisher(client, topic)
	s.close = func() { client.Disconnect(disconnectQuiesce) }
	return s, nil
}

// NewWithPublisher creates a sink over an existing client.
func NewWithPublisher(pub Publisher, topic string) *Sink {
	topic = strings.TrimRight(topic, "/")
	if topic == "" {
		topic = defaultTopic
	}
	return &Sink{pub: pub, topic: topic}
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "mqtt" }

// Render builds the shared event card.
func (s *Sink) Render(ev model.Event) notify.Message { return notify.Render(ev) } //nolint:gocritic // hugeParam

// Send publishes and waits for the broker acknowledgement or ctx.
func (s *Sink) Send(ctx context.Context, msg notify.Message) error { //nolint:gocritic // hugeParam
	body, err := json.Marshal(notify.NewPayload(&msg))
	if err != nil {
		return notify.Wrap(s.Name(), fmt.Errorf("marshal: %w", err))
	}
	topic := s.topic + "/" + strings.ReplaceAll(notify.RoutingKey(msg.Event), ".", "/")
	tok := s.pub.Publish(topic, qosAtLeastOnce, false, body)
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return notify.Wrap(s.Name(), err)
		}
		return nil
	case <-ctx.Done():
		return notify.Wrap(s.Name(), ctx.Err())
	}
}

// Close disconnects from the broker.
func (s *Sink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
