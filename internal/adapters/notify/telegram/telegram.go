// Package telegram sends event cards to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/domain/model"
)

// Minimum gap between two messages to the same chat; Telegram answers 429
// above roughly 30 messages a minute.
const defaultSendInterval = 2 * time.Second

// Sender is the slice of *tgbotapi.BotAPI the sink uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sink sends Markdown messages through the Bot API.
type Sink struct {
	bot      Sender
	chatID   int64
	interval time.Duration

	mu       sync.Mutex
	lastSend time.Time
}

// New connects to the Bot API with token and targets chatID.
func New(token, chatID string) (*Sink, error) {
	if token == "" || chatID == "" {
		return nil, fmt.Errorf("telegram: %w", notify.ErrNotConfigured)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram chat id %q: %w", chatID, err)
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = false
	return NewWithSender(bot, id, defaultSendInterval), nil
}

// NewWithSender creates a sink over an existing sender.
func NewWithSender(bot Sender, chatID int64, interval time.Duration) *Sink {
	return &Sink{bot: bot, chatID: chatID, interval: interval}
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "telegram" }

// Render builds the shared event card.
func (s *Sink) Render(ev model.Event) notify.Message { return notify.Render(ev) } //nolint:gocritic // hugeParam

// Send waits out the per-chat interval, then posts the message.
func (s *Sink) Send(ctx context.Context, msg notify.Message) error { //nolint:gocritic // hugeParam
	s.mu.Lock()
	defer s.mu.Unlock()

	if wait := s.interval - time.Since(s.lastSend); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return notify.Wrap(s.Name(), ctx.Err())
		case <-t.C:
		}
	}

	tg := tgbotapi.NewMessage(s.chatID, Text(&msg))
	tg.ParseMode = tgbotapi.ModeMarkdown
	s.lastSend = time.Now()
	if _, err := s.bot.Send(tg); err != nil {
		return notify.Wrap(s.Name(), err)
	}
	return nil
}

// Text renders the message in Telegram's legacy Markdown, which marks bold
// with single asterisks.
func Text(msg *notify.Message) string {
	return strings.ReplaceAll(msg.Text(), "**", "*")
}
