// Package webhook posts event cards to an incoming-webhook URL using the
// Lark/Feishu rich-text "post" message shape.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/domain/model"
)

const defaultTimeout = 10 * time.Second

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // shared codec

type message struct {
	MsgType string      `json:"msg_type"`
	Content postContent `json:"content"`
}

type postContent struct {
	Post struct {
		EnUS postLang `json:"en_us"`
	} `json:"post"`
}

type postLang struct {
	Title   string      `json:"title"`
	Content [][]element `json:"content"`
}

type element struct {
	Tag  string `json:"tag"`
	Text string `json:"text,omitempty"`
}

// reply is the bot API acknowledgement; non-Lark endpoints omit it.
type reply struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Sink posts JSON to a webhook URL.
type Sink struct {
	url    string
	client *http.Client
}

// New creates a webhook sink; hc may be nil.
func New(url string, hc *http.Client) (*Sink, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook: %w", notify.ErrNotConfigured)
	}
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Sink{url: url, client: hc}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "webhook" }

// Render builds the shared event card.
func (s *Sink) Render(ev model.Event) notify.Message { return notify.Render(ev) } //nolint:gocritic // hugeParam

// Send posts the card and checks both the HTTP status and the bot reply code.
func (s *Sink) Send(ctx context.Context, msg notify.Message) error { //nolint:gocritic // hugeParam
	body, err := json.Marshal(Post(&msg))
	if err != nil {
		return notify.Wrap(s.Name(), fmt.Errorf("marshal: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return notify.Wrap(s.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return notify.Wrap(s.Name(), err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return notify.Wrap(s.Name(), fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw)))
	}
	var r reply
	if len(raw) > 0 && json.Unmarshal(raw, &r) == nil && r.Code != 0 {
		return notify.Wrap(s.Name(), fmt.Errorf("code %d: %s", r.Code, r.Msg))
	}
	return nil
}

// Post builds the rich-text body: headline first, then one line per field.
func Post(msg *notify.Message) any {
	lines := [][]element{{{Tag: "text", Text: notify.Plain(msg.Headline)}}}
	for _, f := range msg.Fields {
		lines = append(lines, []element{{Tag: "text", Text: f.Name + ": " + f.Value}})
	}
	if msg.Footer != "" {
		lines = append(lines, []element{{Tag: "text", Text: msg.Footer}})
	}
	m := message{MsgType: "post"}
	m.Content.Post.EnUS = postLang{Title: msg.Title, Content: lines}
	return m
}
