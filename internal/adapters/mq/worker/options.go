package worker

import (
	"time"

	"github.com/okian/scoreline/pkg/logger"
)

// Option applies a configuration option to the DeliveryWorker.
type Option func(*DeliveryWorker)

// WithSendTimeout bounds each Send call.
func WithSendTimeout(d time.Duration) Option {
	return func(w *DeliveryWorker) {
		if d > 0 {
			w.sendTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *DeliveryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}
