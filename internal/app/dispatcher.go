package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/scoreline/internal/adapters/mq/queue"
	"github.com/okian/scoreline/internal/adapters/mq/worker"
	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/pkg/logger"
	"github.com/okian/scoreline/pkg/metrics"
)

// Default dispatcher configuration constants.
const (
	defaultSinkQueueSize = 256
	defaultSendTimeout   = 10 * time.Second
)

// lane is the queue and delivery worker serving one sink.
type lane struct {
	sink   notify.Sink
	queue  *queue.InMemoryQueue
	worker *worker.DeliveryWorker
}

// DispatcherStats is a snapshot of the dispatch counters.
type DispatcherStats struct {
	Dispatched int64          `json:"dispatched"`
	Dropped    int64          `json:"dropped"`
	Queued     map[string]int `json:"queued"`
	Sinks      []worker.Stats `json:"sinks"`
}

// Dispatcher fans events out to every sink. Each sink has its own lane so a
// slow or failing sink never delays the others or the poll loop.
type Dispatcher struct {
	lanes       []*lane
	queueSize   int
	sendTimeout time.Duration

	dispatched atomic.Int64
	dropped    atomic.Int64

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLaneSize sets the per-sink queue capacity.
func WithLaneSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithDeliveryTimeout bounds every Send call.
func WithDeliveryTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.sendTimeout = t
		}
	}
}

// WithDispatcherLogger sets a custom logger.
func WithDispatcherLogger(l logger.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher builds one lane per sink.
func NewDispatcher(sinks []notify.Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		queueSize:   defaultSinkQueueSize,
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().Named("dispatcher")
	}
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		q := queue.NewInMemoryQueue(
			queue.WithName(sink.Name()),
			queue.WithCapacity(d.queueSize),
		)
		d.lanes = append(d.lanes, &lane{
			sink:   sink,
			queue:  q,
			worker: worker.NewDeliveryWorker(q, sink,
				worker.WithSendTimeout(d.sendTimeout),
				worker.WithLogger(d.logger.With(logger.String("sink", sink.Name()))),
			),
		})
	}
	return d
}

// Start launches the delivery workers on a context detached from ctx, so
// cancelling the caller does not abort deliveries; Shutdown stops them.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	for _, l := range d.lanes {
		go l.worker.Run(wctx)
	}
	d.started = true
	d.logger.Info(ctx, "dispatcher started", logger.Any("sinks", d.Sinks()), logger.Int("lane_size", d.queueSize))
}

// Dispatch enqueues every event on every lane without blocking and returns
// the number of deliveries accepted. A full lane drops the delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, events []model.Event) int {
	accepted := 0
	for _, ev := range events {
		for _, l := range d.lanes {
			if l.queue.Enqueue(ctx, ev) {
				accepted++
				d.dispatched.Add(1)
				continue
			}
			d.dropped.Add(1)
			metrics.RecordDelivery(l.sink.Name(), worker.OutcomeDropped)
			d.logger.Warn(ctx, "delivery dropped",
				logger.String("sink", l.sink.Name()),
				logger.String("fingerprint", string(ev.Fingerprint)),
				logger.Int("queued", l.queue.Len(ctx)),
			)
		}
	}
	return accepted
}

// Shutdown stops intake, lets the workers drain until ctx is done, then
// closes the sinks that hold connections.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, l := range d.lanes {
		_ = l.queue.Close()
	}

	var errs []error
	if d.started {
		for _, l := range d.lanes {
			if err := l.worker.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("drain %s: %w", l.sink.Name(), err))
			}
		}
		d.cancel()
		d.started = false
	}

	for _, l := range d.lanes {
		if pending := l.queue.Len(ctx); pending > 0 {
			d.logger.Warn(ctx, "undelivered events abandoned",
				logger.String("sink", l.sink.Name()),
				logger.Int("pending", pending),
			)
		}
		if c, ok := l.sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", l.sink.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Stats returns dispatch and per-sink delivery counters.
func (d *Dispatcher) Stats() DispatcherStats {
	st := DispatcherStats{
		Dispatched: d.dispatched.Load(),
		Dropped:    d.dropped.Load(),
		Queued:     make(map[string]int, len(d.lanes)),
		Sinks:      make([]worker.Stats, 0, len(d.lanes)),
	}
	for _, l := range d.lanes {
		st.Queued[l.queue.Name()] = l.queue.Len(context.Background())
		st.Sinks = append(st.Sinks, l.worker.Stats())
	}
	return st
}

// Sinks returns the names of the registered sinks.
func (d *Dispatcher) Sinks() []string {
	out := make([]string, 0, len(d.lanes))
	for _, l := range d.lanes {
		out = append(out, l.sink.Name())
	}
	return out
}
