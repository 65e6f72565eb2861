package service

import (
	"time"

	"github.com/okian/scoreline/internal/adapters/feed"
	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithFeedClient sets the upstream feed.
func WithFeedClient(c feed.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

// WithSinks appends notification sinks.
func WithSinks(sinks ...notify.Sink) Option {
	return func(s *Service) {
		for _, sink := range sinks {
			if sink != nil {
				s.sinks = append(s.sinks, sink)
			}
		}
	}
}

// WithPollInterval sets the tick period.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithAbsenceThreshold sets how many consecutive missed polls evict a match.
func WithAbsenceThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.absenceThreshold = n
		}
	}
}

// WithEndedRetention sets how many accepted polls an ended match is kept.
func WithEndedRetention(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.endedRetention = n
		}
	}
}

// WithFetchPolicy sets the per-attempt timeout and the retry count.
func WithFetchPolicy(timeout time.Duration, retries int) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.fetchTimeout = timeout
		}
		if retries >= 0 {
			s.fetchRetries = retries
		}
	}
}

// WithRetryBackoff sets the transient backoff base and cap.
func WithRetryBackoff(base, maxWait time.Duration) Option {
	return func(s *Service) {
		if base > 0 && maxWait >= base {
			s.backoffBase = base
			s.backoffMax = maxWait
		}
	}
}

// WithRateLimitPause sets the minimum wait after the feed rate-limits us.
func WithRateLimitPause(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.rateLimitWait = d
		}
	}
}

// WithSinkQueueSize sets the per-sink lane capacity.
func WithSinkQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sinkQueueSize = n
		}
	}
}

// WithSendTimeout bounds every sink delivery.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// WithShutdownTimeout bounds Stop.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithRetrySleep replaces the wait between fetch attempts.
func WithRetrySleep(fn SleepFunc) Option {
	return func(s *Service) {
		s.sleep = fn
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
