// Package service wires the feed, the reconciler, the dispatcher and the
// sinks into one running pipeline and exposes its state to the HTTP API.
package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/okian/scoreline/internal/adapters/feed"
	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/adapters/repository"
	"github.com/okian/scoreline/internal/domain/types"
	"github.com/okian/scoreline/pkg/logger"
)

// Default service configuration constants.
const (
	defaultAbsenceThreshold = 3
	defaultEndedRetention   = 10
	defaultShutdownTimeout  = 30 * time.Second
)

// Service owns the poll loop and the delivery lanes.
type Service struct {
	mu sync.RWMutex

	// Dependencies
	client feed.Client
	sinks  []notify.Sink

	// Core components, built by Start
	store      repository.Store
	dispatcher *Dispatcher
	scheduler  *Scheduler

	// Configuration
	pollInterval     time.Duration
	absenceThreshold int
	endedRetention   int
	fetchTimeout     time.Duration
	fetchRetries     int
	backoffBase      time.Duration
	backoffMax       time.Duration
	rateLimitWait    time.Duration
	sinkQueueSize    int
	sendTimeout      time.Duration
	shutdownTimeout  time.Duration
	sleep            SleepFunc

	// State
	started bool
	cancel  context.CancelFunc
	runDone chan struct{}

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		pollInterval:     defaultPollInterval,
		absenceThreshold: defaultAbsenceThreshold,
		endedRetention:   defaultEndedRetention,
		fetchTimeout:     defaultFetchTimeout,
		fetchRetries:     defaultFetchRetries,
		backoffBase:      defaultBackoffBase,
		backoffMax:       defaultBackoffMax,
		rateLimitWait:    defaultRateLimitWait,
		sinkQueueSize:    defaultSinkQueueSize,
		sendTimeout:      defaultSendTimeout,
		shutdownTimeout:  defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the pipeline and launches the poll loop. The loop stops when
// ctx is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.client == nil {
		return ErrNoFeedClient
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting scoreline service...")

	s.store = repository.NewMatchStore(
		repository.WithAbsenceThreshold(s.absenceThreshold),
		repository.WithEndedRetention(s.endedRetention),
	)
	s.dispatcher = NewDispatcher(s.sinks,
		WithLaneSize(s.sinkQueueSize),
		WithDeliveryTimeout(s.sendTimeout),
		WithDispatcherLogger(s.logger.Named("dispatcher")),
	)
	s.dispatcher.Start(ctx)

	schedOpts := []SchedulerOption{
		WithInterval(s.pollInterval),
		WithFetchTimeout(s.fetchTimeout),
		WithRetries(s.fetchRetries),
		WithBackoff(s.backoffBase, s.backoffMax),
		WithRateLimitWait(s.rateLimitWait),
		WithSchedulerLogger(s.logger.Named("scheduler")),
	}
	if s.sleep != nil {
		schedOpts = append(schedOpts, WithSleep(s.sleep))
	}
	s.scheduler = NewScheduler(s.client, s.store, s.dispatcher, schedOpts...)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.runDone = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		s.scheduler.Run(runCtx)
	}(s.runDone)

	s.started = true
	s.logger.Info(ctx, "scoreline service started",
		logger.Duration("pollInterval", s.pollInterval),
		logger.Int("absenceThreshold", s.absenceThreshold),
		logger.Int("endedRetention", s.endedRetention),
		logger.Any("sinks", s.dispatcher.Sinks()),
	)
	return nil
}

// Stop stops ticking, waits for the in-flight poll, drains the sinks and
// closes the feed client. Every wait shares shutdownTimeout.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping scoreline service...")

	s.cancel()
	select {
	case <-s.runDone:
	case <-ctx.Done():
		s.logger.Warn(ctx, "in-flight poll did not finish before shutdown deadline")
	}

	if err := s.dispatcher.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "dispatcher shutdown incomplete", logger.Error(err))
	}

	if c, ok := s.client.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn(ctx, "error closing feed client", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "scoreline service stopped")
}

// PollNow runs one poll outside the ticker.
func (s *Service) PollNow(ctx context.Context) error {
	s.mu.RLock()
	sched := s.scheduler
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	return sched.PollOnce(ctx)
}

// Matches returns the tracked matches as of the last successful poll.
func (s *Service) Matches(_ context.Context) []types.MatchView {
	s.mu.RLock()
	sched := s.scheduler
	s.mu.RUnlock()
	if sched == nil {
		return []types.MatchView{}
	}
	return sched.View().Matches
}

// Match returns one tracked match as of the last successful poll.
func (s *Service) Match(ctx context.Context, matchID string) (types.MatchView, error) {
	for _, m := range s.Matches(ctx) {
		if m.MatchID == matchID {
			return m, nil
		}
	}
	return types.MatchView{}, fmt.Errorf("match %s: %w", matchID, repository.ErrNotFound)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"poll_interval": s.pollInterval.String(),
	}
	if s.scheduler != nil {
		view := s.scheduler.View()
		stats["scheduler"] = s.scheduler.Stats()
		stats["tracked_matches"] = len(view.Matches)
		stats["last_poll_id"] = view.PollID
	}
	if s.dispatcher != nil {
		stats["dispatcher"] = s.dispatcher.Stats()
	}
	return stats
}
