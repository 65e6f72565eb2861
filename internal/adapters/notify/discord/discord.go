// Package discord posts event cards to a Discord channel as embeds.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/domain/model"
)

// Poster is the slice of *discordgo.Session the sink uses.
type Poster interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Sink sends embeds over the Discord REST API. No gateway connection is opened.
type Sink struct {
	poster    Poster
	channelID string
	closer    func() error
}

// New creates a sink authenticated with a bot token.
func New(token, channelID string) (*Sink, error) {
	if token == "" || channelID == "" {
		return nil, fmt.Errorf("discord: %w", notify.ErrNotConfigured)
	}
	sess, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &Sink{poster: sess, channelID: channelID, closer: sess.Close}, nil
}

// NewWithPoster creates a sink over an existing poster.
func NewWithPoster(p Poster, channelID string) *Sink {
	return &Sink{poster: p, channelID: channelID}
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "discord" }

// Render builds the shared event card.
func (s *Sink) Render(ev model.Event) notify.Message { return notify.Render(ev) } //nolint:gocritic // hugeParam

// Send posts the embed; ctx bounds the HTTP request.
func (s *Sink) Send(ctx context.Context, msg notify.Message) error { //nolint:gocritic // hugeParam
	if _, err := s.poster.ChannelMessageSendEmbed(s.channelID, Embed(&msg), discordgo.WithContext(ctx)); err != nil {
		return notify.Wrap(s.Name(), err)
	}
	return nil
}

// Close releases the session.
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Embed converts a message to a Discord embed.
func Embed(msg *notify.Message) *discordgo.MessageEmbed {
	emb := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Headline,
		Color:       msg.Color,
	}
	if !msg.Timestamp.IsZero() {
		emb.Timestamp = msg.Timestamp.Format(time.RFC3339)
	}
	for _, f := range msg.Fields {
		emb.Fields = append(emb.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if msg.Footer != "" {
		emb.Footer = &discordgo.MessageEmbedFooter{Text: msg.Footer}
	}
	return emb
}
