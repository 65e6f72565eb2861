// Package config defines service configuration and its layered loading.
//
// Conventions:
// - Keys are flat snake_case; durations are integer milliseconds or seconds
//   as their name says.
// - New() returns the defaults; Load layers a YAML file and the environment
//   on top and validates the result.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// CORSAllowedOrigins restricts browser access to the ops API; empty allows any.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// PollIntervalSeconds is the tick period of the poll loop.
	PollIntervalSeconds int `koanf:"poll_interval_seconds"`
	// AbsenceThreshold is the number of consecutive missed polls that evicts a match.
	AbsenceThreshold int `koanf:"absence_threshold"`
	// EndedRetentionPolls is how many accepted polls an ended match is kept.
	EndedRetentionPolls int `koanf:"ended_retention_polls"`

	// Feed fetch policy.
	FetchTimeoutMS  int `koanf:"fetch_timeout_ms"`
	FetchRetries    int `koanf:"fetch_retries"`
	BackoffBaseMS   int `koanf:"backoff_base_ms"`
	BackoffMaxMS    int `koanf:"backoff_max_ms"`
	RateLimitWaitMS int `koanf:"rate_limit_wait_ms"`

	// Delivery.
	SinkQueueSize     int `koanf:"sink_queue_size"`
	SendTimeoutMS     int `koanf:"send_timeout_ms"`
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`

	// football-data.org feed.
	FeedBaseURL      string   `koanf:"feed_base_url"`
	FeedAPIKey       string   `koanf:"feed_api_key"`
	FeedCompetitions []string `koanf:"feed_competitions"`
	FeedTeams        []string `koanf:"feed_teams"`

	// Sinks. A sink with empty settings is not registered.
	DiscordToken     string `koanf:"discord_token"`
	DiscordChannelID string `koanf:"discord_channel_id"`
	TelegramToken    string `koanf:"telegram_token"`
	TelegramChatID   string `koanf:"telegram_chat_id"`
	WebhookURL       string `koanf:"webhook_url"`
	AMQPURL          string `koanf:"amqp_url"`
	AMQPExchange     string `koanf:"amqp_exchange"`
	MQTTBroker       string `koanf:"mqtt_broker"`
	MQTTTopic        string `koanf:"mqtt_topic"`
	MQTTClientID     string `koanf:"mqtt_client_id"`
	PostgresDSN      string `koanf:"postgres_dsn"`
	PostgresTable    string `koanf:"postgres_table"`
}

// listKeys are populated from comma-separated environment values.
var listKeys = map[string]bool{ //nolint:gochecknoglobals // static lookup table
	"feed_competitions":    true,
	"feed_teams":           true,
	"cors_allowed_origins": true,
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		PollIntervalSeconds: 60,
		AbsenceThreshold:    3,
		EndedRetentionPolls: 10,
		FetchTimeoutMS:      10_000,
		FetchRetries:        3,
		BackoffBaseMS:       1_000,
		BackoffMaxMS:        30_000,
		RateLimitWaitMS:     60_000,
		SinkQueueSize:       256,
		SendTimeoutMS:       10_000,
		ShutdownTimeoutMS:   30_000,
		FeedBaseURL:         "https://api.football-data.org/v4",
		FeedCompetitions:    []string{"PL", "PD", "CL"},
		AMQPExchange:        "scoreline.events",
		MQTTTopic:           "scoreline/events",
		PostgresTable:       "match_events",
	}
}

// Validate checks ranges and returns an error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}
	check(strings.TrimSpace(c.Addr) != "", "addr must not be empty")
	check(c.PollIntervalSeconds >= 5, "poll_interval_seconds must be at least 5")
	check(c.AbsenceThreshold >= 1, "absence_threshold must be at least 1")
	check(c.EndedRetentionPolls >= 1, "ended_retention_polls must be at least 1")
	check(c.FetchTimeoutMS > 0, "fetch_timeout_ms must be positive")
	check(c.FetchRetries >= 0, "fetch_retries must not be negative")
	check(c.BackoffBaseMS > 0, "backoff_base_ms must be positive")
	check(c.BackoffMaxMS >= c.BackoffBaseMS, "backoff_max_ms must not be below backoff_base_ms")
	check(c.RateLimitWaitMS >= 0, "rate_limit_wait_ms must not be negative")
	check(c.SinkQueueSize >= 1, "sink_queue_size must be at least 1")
	check(c.SendTimeoutMS > 0, "send_timeout_ms must be positive")
	check(c.ShutdownTimeoutMS > 0, "shutdown_timeout_ms must be positive")
	check((c.DiscordToken == "") == (c.DiscordChannelID == ""), "discord_token and discord_channel_id must be set together")
	check((c.TelegramToken == "") == (c.TelegramChatID == ""), "telegram_token and telegram_chat_id must be set together")

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// PollInterval returns the tick period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c *Config) FetchTimeout() time.Duration    { return ms(c.FetchTimeoutMS) }
func (c *Config) BackoffBase() time.Duration     { return ms(c.BackoffBaseMS) }
func (c *Config) BackoffMax() time.Duration      { return ms(c.BackoffMaxMS) }
func (c *Config) RateLimitWait() time.Duration   { return ms(c.RateLimitWaitMS) }
func (c *Config) SendTimeout() time.Duration     { return ms(c.SendTimeoutMS) }
func (c *Config) ShutdownTimeout() time.Duration { return ms(c.ShutdownTimeoutMS) }
