package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/scoreline/internal/adapters/feed"
	"github.com/okian/scoreline/internal/adapters/repository"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/reconcile"
	"github.com/okian/scoreline/internal/domain/types"
	"github.com/okian/scoreline/pkg/logger"
	"github.com/okian/scoreline/pkg/metrics"
)

// Default scheduler configuration constants.
const (
	defaultPollInterval  = 60 * time.Second
	defaultFetchTimeout  = 10 * time.Second
	defaultFetchRetries  = 3
	defaultBackoffBase   = time.Second
	defaultBackoffMax    = 30 * time.Second
	defaultRateLimitWait = 60 * time.Second
)

// EventDispatcher accepts the events of one reconciliation pass. It must
// not block on delivery.
type EventDispatcher interface {
	Dispatch(ctx context.Context, events []model.Event) int
}

// SleepFunc waits for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// View is the read-only state published after every successful poll.
type View struct {
	PollID   string            `json:"poll_id"`
	PolledAt time.Time         `json:"polled_at"`
	Matches  []types.MatchView `json:"matches"`
}

// SchedulerStats is a snapshot of the poll counters.
type SchedulerStats struct {
	Polls        int64     `json:"polls"`
	Failures     int64     `json:"failures"`
	SkippedTicks int64     `json:"skipped_ticks"`
	Events       int64     `json:"events"`
	Tracked      int       `json:"tracked"`
	LastPollAt   time.Time `json:"last_poll_at"`
	LastError    string    `json:"last_error,omitempty"`
}

// Scheduler drives fetch, reconcile and dispatch on a fixed interval.
//
// It is the only goroutine touching the store and the reconciler; readers
// get the immutable View published at the end of each pass.
type Scheduler struct {
	client     feed.Client
	store      repository.Store
	reconciler *reconcile.Reconciler
	dispatcher EventDispatcher

	interval      time.Duration
	fetchTimeout  time.Duration
	retries       int
	backoffBase   time.Duration
	backoffMax    time.Duration
	rateLimitWait time.Duration
	sleep         SleepFunc

	inFlight atomic.Bool
	view     atomic.Pointer[View]

	polls    atomic.Int64
	failures atomic.Int64
	skipped  atomic.Int64
	events   atomic.Int64

	mu         sync.Mutex
	lastPollAt time.Time
	lastError  string

	logger logger.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithFetchTimeout bounds every fetch attempt.
func WithFetchTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithRetries sets how many attempts follow a failed first attempt.
func WithRetries(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithBackoff sets the transient backoff base and cap.
func WithBackoff(base, maxWait time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if base > 0 && maxWait >= base {
			s.backoffBase = base
			s.backoffMax = maxWait
		}
	}
}

// WithRateLimitWait sets the minimum wait after a RateLimited failure.
func WithRateLimitWait(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d >= 0 {
			s.rateLimitWait = d
		}
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn SleepFunc) SchedulerOption {
	return func(s *Scheduler) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// WithSchedulerLogger sets a custom logger.
func WithSchedulerLogger(l logger.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScheduler wires a scheduler over store. The store must not be shared.
func NewScheduler(client feed.Client, store repository.Store, dispatcher EventDispatcher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		client:        client,
		store:         store,
		reconciler:    reconcile.New(store),
		dispatcher:    dispatcher,
		interval:      defaultPollInterval,
		fetchTimeout:  defaultFetchTimeout,
		retries:       defaultFetchRetries,
		backoffBase:   defaultBackoffBase,
		backoffMax:    defaultBackoffMax,
		rateLimitWait: defaultRateLimitWait,
		sleep:         sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("scheduler")
	}
	s.view.Store(&View{Matches: []types.MatchView{}})
	return s
}

// Run polls once immediately and then on every tick until ctx is cancelled.
// A tick that fires while a poll is running is skipped. Run returns after
// the in-flight poll, if any, has finished.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	launch := func() {
		if !s.inFlight.CompareAndSwap(false, true) {
			s.skipped.Add(1)
			metrics.RecordTickSkipped()
			s.logger.Debug(ctx, "tick skipped, poll in flight")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.inFlight.Store(false)
			_ = s.poll(ctx)
		}()
	}

	s.logger.Info(ctx, "scheduler started", logger.Duration("interval", s.interval))
	launch()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scheduler stopping")
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			launch()
		}
	}
}

// PollOnce runs one fetch, reconcile and dispatch pass.
func (s *Scheduler) PollOnce(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrPollInFlight
	}
	defer s.inFlight.Store(false)
	return s.poll(ctx)
}

// View returns the last published view. It never returns nil.
func (s *Scheduler) View() *View {
	return s.view.Load()
}

// Stats returns the poll counters.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	last, lastErr := s.lastPollAt, s.lastError
	s.mu.Unlock()
	return SchedulerStats{
		Polls:        s.polls.Load(),
		Failures:     s.failures.Load(),
		SkippedTicks: s.skipped.Load(),
		Events:       s.events.Load(),
		Tracked:      len(s.View().Matches),
		LastPollAt:   last,
		LastError:    lastErr,
	}
}

func (s *Scheduler) poll(ctx context.Context) error {
	pollID := uuid.NewString()
	log := s.logger.With(logger.String("poll_id", pollID))
	start := time.Now()
	s.polls.Add(1)

	snaps, err := s.fetch(ctx, log)
	if err != nil {
		s.failures.Add(1)
		s.setLast(start, err.Error())
		metrics.RecordPoll(false, time.Since(start))
		log.Warn(ctx, "poll failed, state unchanged", logger.Error(err), logger.Duration("elapsed", time.Since(start)))
		return err
	}

	res := s.reconciler.Reconcile(snaps)
	for _, ve := range res.Invalid {
		log.Debug(ctx, "snapshot rejected", logger.Error(ve))
	}
	if len(res.Events) > 0 {
		s.events.Add(int64(len(res.Events)))
		// the pass is committed; its events must reach the lanes even if
		// shutdown started while fetching
		s.dispatcher.Dispatch(context.WithoutCancel(ctx), res.Events)
	}
	s.publish(pollID, start)
	s.setLast(start, "")
	metrics.RecordPoll(true, time.Since(start))

	log.Info(ctx, "poll complete",
		logger.Int("snapshots", len(snaps)),
		logger.Int("accepted", res.Accepted),
		logger.Int("rejected", res.Rejected),
		logger.Int("baselined", res.Baselined),
		logger.Int("events", len(res.Events)),
		logger.Int("evicted", len(res.Evicted)),
		logger.Int("tracked", s.store.Len()),
		logger.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// fetch runs the bounded attempt loop. Each attempt gets its own timeout
// detached from ctx so shutdown lets it finish; no attempt starts after ctx
// is done.
func (s *Scheduler) fetch(ctx context.Context, log logger.Logger) ([]model.Snapshot, error) {
	attempts := 1 + s.retries
	var lastErr *feed.Error

	for n := 1; n <= attempts; n++ {
		if n > 1 {
			wait := s.backoff(n-1, lastErr)
			log.Debug(ctx, "retrying fetch", logger.Int("attempt", n), logger.Duration("wait", wait))
			if err := s.sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("fetch aborted: %w", lastErr)
			}
		}
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("fetch aborted: %w", lastErr)
			}
			return nil, err
		}

		metrics.RecordFetchAttempt()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		snaps, err := s.client.FetchSnapshots(actx)
		cancel()
		if err == nil {
			return snaps, nil
		}

		lastErr = feed.Classify(err)
		metrics.RecordFetchError(lastErr.Kind.String())
		log.Warn(ctx, "fetch attempt failed",
			logger.Int("attempt", n),
			logger.String("kind", lastErr.Kind.String()),
			logger.Error(lastErr),
		)
		if lastErr.Kind == feed.Fatal {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrFetchExhausted, attempts, lastErr)
}

// backoff returns the wait before retry n (1-based).
func (s *Scheduler) backoff(n int, last *feed.Error) time.Duration {
	if last != nil && last.Kind == feed.RateLimited {
		return max(last.RetryAfter, s.rateLimitWait)
	}
	d := s.backoffBase
	for i := 1; i < n && d < s.backoffMax; i++ {
		d *= 2
	}
	return min(d, s.backoffMax)
}

func (s *Scheduler) publish(pollID string, polledAt time.Time) {
	start := time.Now()
	s.view.Store(&View{PollID: pollID, PolledAt: polledAt, Matches: s.store.View()})
	metrics.RecordViewPublish(time.Since(start))
}

func (s *Scheduler) setLast(at time.Time, errMsg string) {
	s.mu.Lock()
	s.lastPollAt = at
	s.lastError = errMsg
	s.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
