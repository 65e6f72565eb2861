package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/okian/scoreline/internal/adapters/feed/footballdata"
	"github.com/okian/scoreline/internal/adapters/http/api"
	"github.com/okian/scoreline/internal/adapters/http/swagger"
	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/adapters/notify/amqp"
	"github.com/okian/scoreline/internal/adapters/notify/discord"
	"github.com/okian/scoreline/internal/adapters/notify/journal"
	"github.com/okian/scoreline/internal/adapters/notify/logsink"
	"github.com/okian/scoreline/internal/adapters/notify/mqtt"
	"github.com/okian/scoreline/internal/adapters/notify/telegram"
	"github.com/okian/scoreline/internal/adapters/notify/webhook"
	"github.com/okian/scoreline/internal/adapters/notify/wshub"
	app "github.com/okian/scoreline/internal/app"
	"github.com/okian/scoreline/internal/config"
	"github.com/okian/scoreline/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	connectTimeout    = 10 * time.Second
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "scoreline exited with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel)); err != nil {
		return err
	}
	log := logger.Get()

	hub := wshub.New()
	go hub.Run(ctx)

	sinks := buildSinks(ctx, cfg, hub)
	svc := app.New(
		app.WithLogger(log),
		app.WithFeedClient(newFeedClient(cfg)),
		app.WithSinks(sinks...),
		app.WithPollInterval(cfg.PollInterval()),
		app.WithAbsenceThreshold(cfg.AbsenceThreshold),
		app.WithEndedRetention(cfg.EndedRetentionPolls),
		app.WithFetchPolicy(cfg.FetchTimeout(), cfg.FetchRetries),
		app.WithRetryBackoff(cfg.BackoffBase(), cfg.BackoffMax()),
		app.WithRateLimitPause(cfg.RateLimitWait()),
		app.WithSinkQueueSize(cfg.SinkQueueSize),
		app.WithSendTimeout(cfg.SendTimeout()),
		app.WithShutdownTimeout(cfg.ShutdownTimeout()),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	srv := newHTTPServer(ctx, cfg, svc, hub)
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func newFeedClient(cfg *config.Config) *footballdata.Client {
	return footballdata.NewClient(
		footballdata.WithBaseURL(cfg.FeedBaseURL),
		footballdata.WithAPIKey(cfg.FeedAPIKey),
		footballdata.WithCompetitions(cfg.FeedCompetitions),
		footballdata.WithTeams(cfg.FeedTeams),
	)
}

// buildSinks registers every sink whose settings are present. A sink that
// fails to connect is logged and left out; the log and websocket sinks are
// always on.
func buildSinks(ctx context.Context, cfg *config.Config, hub *wshub.Hub) []notify.Sink {
	log := logger.Get().Named("sinks")
	sinks := []notify.Sink{logsink.New(nil), hub}

	add := func(name string, sink notify.Sink, err error) {
		if err != nil {
			log.Error(ctx, "sink disabled", logger.String("sink", name), logger.Error(err))
			return
		}
		sinks = append(sinks, sink)
		log.Info(ctx, "sink enabled", logger.String("sink", name))
	}

	if cfg.DiscordToken != "" {
		s, err := discord.New(cfg.DiscordToken, cfg.DiscordChannelID)
		add("discord", s, err)
	}
	if cfg.TelegramToken != "" {
		s, err := telegram.New(cfg.TelegramToken, cfg.TelegramChatID)
		add("telegram", s, err)
	}
	if cfg.WebhookURL != "" {
		s, err := webhook.New(cfg.WebhookURL, nil)
		add("webhook", s, err)
	}
	if cfg.AMQPURL != "" {
		s, err := amqp.New(cfg.AMQPURL, cfg.AMQPExchange)
		add("amqp", s, err)
	}
	if cfg.MQTTBroker != "" {
		s, err := mqtt.New(cfg.MQTTBroker, cfg.MQTTTopic, cfg.MQTTClientID)
		add("mqtt", s, err)
	}
	if cfg.PostgresDSN != "" {
		jctx, cancel := context.WithTimeout(ctx, connectTimeout)
		s, err := journal.New(jctx, cfg.PostgresDSN, cfg.PostgresTable)
		cancel()
		add("journal", s, err)
	}
	return sinks
}

func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service, hub *wshub.Hub) *http.Server {
	apiServer := api.NewServer(svc, svc,
		api.WithStream(hub),
		api.WithAllowedOrigins(cfg.CORSAllowedOrigins...),
		api.WithRoutes(func(r *mux.Router) { swagger.Register(ctx, r) }),
	)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(ctx),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
