package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// memorySink collects delivered messages; gate, when set, holds every send.
type memorySink struct {
	name   string
	gate   chan struct{}
	mu     sync.Mutex
	got    []notify.Message
	closed atomic.Bool
}

func (m *memorySink) Name() string { return m.name }

func (m *memorySink) Render(ev model.Event) notify.Message { return notify.Render(ev) }

func (m *memorySink) Send(ctx context.Context, msg notify.Message) error {
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, msg)
	return nil
}

func (m *memorySink) Close() error {
	m.closed.Store(true)
	return nil
}

func (m *memorySink) fingerprints() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.got))
	for _, msg := range m.got {
		out = append(out, string(msg.Event.Fingerprint))
	}
	return out
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func goalEvent(id string, home, away int) model.Event {
	return model.NewEvent(model.KindGoalScored, live(id, home, away, 50))
}

func TestDispatcher(t *testing.T) {
	Convey("Given a dispatcher with a fast and a stuck sink", t, func() {
		fast := &memorySink{name: "fast"}
		stuck := &memorySink{name: "stuck", gate: make(chan struct{})}
		d := NewDispatcher([]notify.Sink{fast, stuck}, WithLaneSize(2), WithDeliveryTimeout(time.Second))
		d.Start(context.Background())

		Convey("When events are dispatched", func() {
			n := d.Dispatch(context.Background(), []model.Event{goalEvent("1", 1, 0), goalEvent("1", 2, 0)})

			Convey("Then the fast sink is not held back by the stuck one", func() {
				So(n, ShouldEqual, 4)
				So(eventually(func() bool { return len(fast.fingerprints()) == 2 }), ShouldBeTrue)
				So(fast.fingerprints(), ShouldResemble, []string{"1|goal_scored|1-0", "1|goal_scored|2-0"})
				So(stuck.fingerprints(), ShouldBeEmpty)
				close(stuck.gate)
				So(d.Shutdown(context.Background()), ShouldBeNil)
			})
		})

		Convey("When a lane overflows", func() {
			for i := 1; i <= 5; i++ {
				d.Dispatch(context.Background(), []model.Event{goalEvent("2", i, 0)})
			}

			Convey("Then the excess is dropped and counted without blocking", func() {
				st := d.Stats()
				So(st.Dropped, ShouldBeGreaterThan, int64(0))
				So(st.Queued["stuck"], ShouldBeLessThanOrEqualTo, 2)
				close(stuck.gate)
				So(d.Shutdown(context.Background()), ShouldBeNil)
			})
		})

		Convey("When shutting down with pending deliveries", func() {
			d.Dispatch(context.Background(), []model.Event{goalEvent("3", 1, 0)})
			go func() {
				time.Sleep(20 * time.Millisecond)
				close(stuck.gate)
			}()
			err := d.Shutdown(context.Background())

			Convey("Then the lanes are drained and sinks closed", func() {
				So(err, ShouldBeNil)
				So(stuck.fingerprints(), ShouldResemble, []string{"3|goal_scored|1-0"})
				So(fast.closed.Load(), ShouldBeTrue)
				So(stuck.closed.Load(), ShouldBeTrue)
			})
		})

		Convey("When the drain deadline passes", func() {
			d.Dispatch(context.Background(), []model.Event{goalEvent("4", 1, 0)})
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			err := d.Shutdown(ctx)

			Convey("Then shutdown returns and reports the deadline", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(stuck.closed.Load(), ShouldBeTrue)
			})
		})

		Convey("When dispatching after shutdown", func() {
			close(stuck.gate)
			So(d.Shutdown(context.Background()), ShouldBeNil)
			n := d.Dispatch(context.Background(), []model.Event{goalEvent("5", 1, 0)})

			Convey("Then nothing is accepted", func() {
				So(n, ShouldEqual, 0)
				So(d.Stats().Dropped, ShouldEqual, int64(2))
			})
		})
	})
}
