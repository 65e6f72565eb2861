package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/adapters/repository"
	service "github.com/okian/scoreline/internal/app"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/feedsim"
	"github.com/okian/scoreline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type collectSink struct {
	mu  sync.Mutex
	got []model.Event
}

func (c *collectSink) Name() string                          { return "collect" }
func (c *collectSink) Render(ev model.Event) notify.Message { return notify.Render(ev) }
func (c *collectSink) Send(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, msg.Event)
	return nil
}

func (c *collectSink) events() []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Event(nil), c.got...)
}

func snap(home, away, minute int, st model.Status) model.Snapshot {
	return model.Snapshot{
		ID: "100", Competition: "laliga", HomeName: "Real Madrid", AwayName: "Barcelona",
		HomeScore: home, AwayScore: away, ClockMinutes: minute, Status: st,
	}
}

func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestService_New(t *testing.T) {
	Convey("Given a new service without a feed", t, func() {
		svc := service.New()

		Convey("Then Start refuses to run", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrNoFeedClient), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.Matches(context.Background()), ShouldBeEmpty)
			So(errors.Is(svc.PollNow(context.Background()), service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_EndToEnd(t *testing.T) {
	Convey("Given a service over a scripted match", t, func() {
		feedDouble := feedsim.NewScripted(
			feedsim.Batch(snap(0, 0, 0, model.StatusScheduled)),
			feedsim.Batch(snap(0, 0, 1, model.StatusLive)),
			feedsim.Batch(snap(1, 0, 9, model.StatusLive)),
			feedsim.Batch(snap(1, 0, 9, model.StatusLive)),
			feedsim.Batch(snap(1, 1, 67, model.StatusLive)),
			feedsim.Batch(snap(1, 1, 90, model.StatusEnded)),
		)
		sink := &collectSink{}
		svc := service.New(
			service.WithFeedClient(feedDouble),
			service.WithSinks(sink),
			service.WithPollInterval(5*time.Millisecond),
			service.WithEndedRetention(1_000_000),
			service.WithShutdownTimeout(2*time.Second),
		)

		Convey("When the service runs through the match", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			defer svc.Stop()

			Convey("Then each goal and the final whistle are announced once", func() {
				So(waitUntil(func() bool { return len(sink.events()) >= 3 }), ShouldBeTrue)
				So(waitUntil(func() bool { return feedDouble.Calls() > 10 }), ShouldBeTrue)

				got := sink.events()
				So(len(got), ShouldEqual, 3)
				So(string(got[0].Fingerprint), ShouldEqual, "100|goal_scored|1-0")
				So(string(got[1].Fingerprint), ShouldEqual, "100|goal_scored|1-1")
				So(string(got[2].Fingerprint), ShouldEqual, "100|match_ended")

				m, err := svc.Match(context.Background(), "100")
				So(err, ShouldBeNil)
				So(m.Status, ShouldEqual, "ended")
				So(m.Announced, ShouldEqual, 3)

				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["tracked_matches"], ShouldEqual, 1)
			})

			Convey("Then unknown matches are reported as not found", func() {
				_, err := svc.Match(context.Background(), "nope")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the service is stopped", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()
			svc.Stop()

			Convey("Then it reports stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}
