// Package worker delivers queued events to a single notification sink.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/pkg/logger"
	"github.com/okian/scoreline/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultSendTimeout = 10 * time.Second
)

// Delivery outcomes used as metric labels.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// Event abstracts what workers read off the queue.
type Event = model.Event

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Stats is a snapshot of a worker's delivery counters.
type Stats struct {
	Sink   string `json:"sink"`
	Sent   int64  `json:"sent"`
	Failed int64  `json:"failed"`
	Panics int64  `json:"panics"`
}

// DeliveryWorker renders and sends every event from its queue to one sink.
// Sink failures and panics are logged and counted, never propagated.
type DeliveryWorker struct {
	queue       Queue
	sink        notify.Sink
	name        string
	sendTimeout time.Duration

	sent   atomic.Int64
	failed atomic.Int64
	panics atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewDeliveryWorker creates a worker for sink reading from queue.
func NewDeliveryWorker(queue Queue, sink notify.Sink, opts ...Option) *DeliveryWorker {
	w := &DeliveryWorker{
		queue:       queue,
		sink:        sink,
		name:        sink.Name(),
		sendTimeout: defaultSendTimeout,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("sink-" + w.name)
	}
	return w
}

// Run delivers events until the queue is closed and drained, ctx is
// cancelled, or Shutdown gives up waiting.
func (w *DeliveryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok || ctx.Err() != nil {
				return
			}
			if err := w.deliver(ctx, ev); err != nil {
				w.logger.Warn(ctx, "delivery failed",
					logger.String("fingerprint", string(ev.Fingerprint)),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed when Run returns.
func (w *DeliveryWorker) Done() <-chan struct{} { return w.done }

// Shutdown waits for Run to drain a closed queue. If ctx ends first the
// delivery in progress is cancelled and the remaining events are abandoned.
// Run must have been started.
func (w *DeliveryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
	}

	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
	w.logger.Warn(ctx, "shutdown timed out", logger.String("sink", w.name))
	return fmt.Errorf("shutdown timed out: %w", ctx.Err())
}

// Stats returns the delivery counters.
func (w *DeliveryWorker) Stats() Stats {
	return Stats{
		Sink:   w.name,
		Sent:   w.sent.Load(),
		Failed: w.failed.Load(),
		Panics: w.panics.Load(),
	}
}

// deliver sends one event, bounded by the send timeout.
func (w *DeliveryWorker) deliver(ctx context.Context, ev Event) (err error) { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	start := time.Now()
	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			w.panics.Add(1)
			metrics.RecordErrorByComponent("sink", "panic")
			err = notify.Wrap(w.name, fmt.Errorf("%w: %v", ErrSinkPanic, r))
		}
		metrics.RecordDeliveryLatency(w.name, time.Since(start))
		if err != nil {
			w.failed.Add(1)
			metrics.RecordDelivery(w.name, OutcomeFailed)
			return
		}
		w.sent.Add(1)
		metrics.RecordDelivery(w.name, OutcomeSent)
	}()

	msg := w.sink.Render(ev)
	if err := w.sink.Send(sendCtx, msg); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.RecordErrorByComponent("sink", "timeout")
		}
		return notify.Wrap(w.name, err)
	}

	w.logger.Debug(ctx, "event delivered",
		logger.String("fingerprint", string(ev.Fingerprint)),
		logger.Duration("latency", time.Since(start)),
	)
	return nil
}
