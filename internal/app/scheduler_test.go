package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/scoreline/internal/adapters/feed"
	"github.com/okian/scoreline/internal/adapters/repository"
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

// recordingDispatcher keeps every dispatched event.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recordingDispatcher) Dispatch(_ context.Context, events []model.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return len(events)
}

func (r *recordingDispatcher) all() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Event, len(r.events))
	copy(out, r.events)
	return out
}

// sleepRecorder replaces real waits and remembers them.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func live(id string, home, away, minute int) model.Snapshot {
	return model.Snapshot{
		ID: id, Competition: "epl", HomeName: "Liverpool", AwayName: "Everton",
		HomeScore: home, AwayScore: away, ClockMinutes: minute, Status: model.StatusLive,
	}
}

func TestScheduler_PollOnce(t *testing.T) {
	Convey("Given a scheduler over a scripted feed", t, func() {
		feedDouble := feedsim.NewScripted(
			feedsim.Batch(live("1", 0, 0, 10)),
			feedsim.Batch(live("1", 1, 0, 12)),
		)
		store := repository.NewMatchStore()
		disp := &recordingDispatcher{}
		sleeper := &sleepRecorder{}
		s := NewScheduler(feedDouble, store, disp, WithSleep(sleeper.sleep))

		Convey("When the first poll runs", func() {
			So(s.PollOnce(context.Background()), ShouldBeNil)

			Convey("Then the match is baselined without events", func() {
				So(disp.all(), ShouldBeEmpty)
				So(store.Len(), ShouldEqual, 1)
				view := s.View()
				So(len(view.Matches), ShouldEqual, 1)
				So(view.PollID, ShouldNotBeEmpty)
			})

			Convey("And when the score goes up", func() {
				So(s.PollOnce(context.Background()), ShouldBeNil)

				Convey("Then one goal is dispatched and the view follows", func() {
					events := disp.all()
					So(len(events), ShouldEqual, 1)
					So(events[0].Kind, ShouldEqual, model.KindGoalScored)
					So(string(events[0].Fingerprint), ShouldEqual, "1|goal_scored|1-0")
					So(s.View().Matches[0].HomeScore, ShouldEqual, 1)
					st := s.Stats()
					So(st.Polls, ShouldEqual, int64(2))
					So(st.Events, ShouldEqual, int64(1))
					So(st.Tracked, ShouldEqual, 1)
				})
			})
		})
	})
}

func TestScheduler_OutageLeavesStateUntouched(t *testing.T) {
	Convey("Given a baselined match and a feed that goes down", t, func() {
		outage := feed.NewError(feed.Transient, "GET /matches", errors.New("503"))
		feedDouble := feedsim.NewScripted(feedsim.Batch(live("1", 0, 0, 10)))
		store := repository.NewMatchStore(repository.WithAbsenceThreshold(2))
		disp := &recordingDispatcher{}
		sleeper := &sleepRecorder{}
		s := NewScheduler(feedDouble, store, disp, WithRetries(0), WithSleep(sleeper.sleep))

		So(s.PollOnce(context.Background()), ShouldBeNil)
		before, _ := store.Get("1")
		feedDouble.Push(
			feedsim.Fail(outage), feedsim.Fail(outage), feedsim.Fail(outage),
			feedsim.Fail(outage), feedsim.Fail(outage),
		)

		Convey("When five polls fail", func() {
			for i := 0; i < 5; i++ {
				err := s.PollOnce(context.Background())
				So(errors.Is(err, ErrFetchExhausted), ShouldBeTrue)
				So(errors.Is(err, feed.ErrTransient), ShouldBeTrue)
			}

			Convey("Then nothing is evicted, changed or announced", func() {
				after, ok := store.Get("1")
				So(ok, ShouldBeTrue)
				So(after, ShouldResemble, before)
				So(disp.all(), ShouldBeEmpty)
				st := s.Stats()
				So(st.Failures, ShouldEqual, int64(5))
				So(st.LastError, ShouldNotBeEmpty)
			})

			Convey("And when the feed recovers with a goal", func() {
				feedDouble.Push(feedsim.Batch(live("1", 0, 1, 30)))
				So(s.PollOnce(context.Background()), ShouldBeNil)

				Convey("Then the goal is announced once", func() {
					events := disp.all()
					So(len(events), ShouldEqual, 1)
					So(string(events[0].Fingerprint), ShouldEqual, "1|goal_scored|0-1")
					So(s.Stats().LastError, ShouldBeEmpty)
				})
			})
		})
	})
}

func TestScheduler_FetchTimeout(t *testing.T) {
	Convey("Given a feed whose first call hangs until its context ends", t, func() {
		var calls atomic.Int32
		var hadDeadline atomic.Bool
		client := feed.ClientFunc(func(ctx context.Context) ([]model.Snapshot, error) {
			if calls.Add(1) == 1 {
				_, ok := ctx.Deadline()
				hadDeadline.Store(ok)
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return []model.Snapshot{live("7", 0, 0, 5)}, nil
		})

		var buf bytes.Buffer
		So(logger.Init(logger.WithFormat(logger.FormatJSON), logger.WithLevel("warn"), logger.WithWriter(&buf)), ShouldBeNil)
		log := logger.Get()
		So(logger.Init(), ShouldBeNil)

		store := repository.NewMatchStore()
		sleeper := &sleepRecorder{}
		s := NewScheduler(client, store, &recordingDispatcher{},
			WithFetchTimeout(20*time.Millisecond),
			WithRetries(1),
			WithBackoff(time.Second, 4*time.Second),
			WithRateLimitWait(60*time.Second),
			WithSleep(sleeper.sleep),
			WithSchedulerLogger(log),
		)

		Convey("When a poll runs", func() {
			start := time.Now()
			err := s.PollOnce(context.Background())

			Convey("Then the hung attempt times out as a transient failure and the retry succeeds", func() {
				So(err, ShouldBeNil)
				So(time.Since(start), ShouldBeLessThan, 2*time.Second)
				So(calls.Load(), ShouldEqual, int32(2))
				So(hadDeadline.Load(), ShouldBeTrue)
				So(store.Len(), ShouldEqual, 1)
				So(sleeper.waits, ShouldResemble, []time.Duration{time.Second})
				So(buf.String(), ShouldContainSubstring, `"kind":"transient"`)
			})
		})
	})
}

func TestScheduler_Retries(t *testing.T) {
	Convey("Given a scheduler with four retries", t, func() {
		store := repository.NewMatchStore()
		disp := &recordingDispatcher{}
		sleeper := &sleepRecorder{}
		opts := []SchedulerOption{
			WithRetries(4),
			WithBackoff(time.Second, 4*time.Second),
			WithRateLimitWait(60 * time.Second),
			WithSleep(sleeper.sleep),
		}

		Convey("When every attempt fails transiently", func() {
			transient := feed.NewError(feed.Transient, "fetch", errors.New("connection reset"))
			feedDouble := feedsim.NewScripted(feedsim.Fail(transient))
			s := NewScheduler(feedDouble, store, disp, opts...)
			err := s.PollOnce(context.Background())

			Convey("Then attempts are bounded and backoff doubles up to the cap", func() {
				So(errors.Is(err, ErrFetchExhausted), ShouldBeTrue)
				So(feedDouble.Calls(), ShouldEqual, 5)
				So(sleeper.waits, ShouldResemble, []time.Duration{
					time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second,
				})
			})
		})

		Convey("When a retry succeeds", func() {
			transient := feed.NewError(feed.Transient, "fetch", errors.New("timeout"))
			feedDouble := feedsim.NewScripted(feedsim.Fail(transient), feedsim.Batch(live("2", 0, 0, 1)))
			s := NewScheduler(feedDouble, store, disp, opts...)

			Convey("Then the poll succeeds", func() {
				So(s.PollOnce(context.Background()), ShouldBeNil)
				So(feedDouble.Calls(), ShouldEqual, 2)
				So(store.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the feed rate limits with a short hint", func() {
			limited := &feed.Error{Kind: feed.RateLimited, Op: "GET /matches", StatusCode: 429, RetryAfter: 5 * time.Second}
			feedDouble := feedsim.NewScripted(feedsim.Fail(limited), feedsim.Batch(live("3", 0, 0, 1)))
			s := NewScheduler(feedDouble, store, disp, opts...)

			Convey("Then the configured rate-limit wait wins", func() {
				So(s.PollOnce(context.Background()), ShouldBeNil)
				So(sleeper.waits, ShouldResemble, []time.Duration{60 * time.Second})
			})
		})

		Convey("When the feed rate limits with a long hint", func() {
			limited := &feed.Error{Kind: feed.RateLimited, Op: "GET /matches", StatusCode: 429, RetryAfter: 90 * time.Second}
			feedDouble := feedsim.NewScripted(feedsim.Fail(limited), feedsim.Batch(live("3", 0, 0, 1)))
			s := NewScheduler(feedDouble, store, disp, opts...)

			Convey("Then the upstream hint wins", func() {
				So(s.PollOnce(context.Background()), ShouldBeNil)
				So(sleeper.waits, ShouldResemble, []time.Duration{90 * time.Second})
			})
		})

		Convey("When the feed fails fatally", func() {
			fatal := feed.NewError(feed.Fatal, "GET /matches", errors.New("403 forbidden"))
			feedDouble := feedsim.NewScripted(feedsim.Fail(fatal))
			s := NewScheduler(feedDouble, store, disp, opts...)
			err := s.PollOnce(context.Background())

			Convey("Then no retry is attempted", func() {
				So(errors.Is(err, feed.ErrFatal), ShouldBeTrue)
				So(feedDouble.Calls(), ShouldEqual, 1)
				So(sleeper.waits, ShouldBeEmpty)
			})
		})

		Convey("When an unclassified error occurs", func() {
			feedDouble := feedsim.NewScripted(feedsim.Fail(errors.New("weird")), feedsim.Batch(live("4", 0, 0, 1)))
			s := NewScheduler(feedDouble, store, disp, opts...)

			Convey("Then it is retried as transient", func() {
				So(s.PollOnce(context.Background()), ShouldBeNil)
				So(feedDouble.Calls(), ShouldEqual, 2)
			})
		})

		Convey("When shutdown starts during backoff", func() {
			transient := feed.NewError(feed.Transient, "fetch", errors.New("connection reset"))
			feedDouble := feedsim.NewScripted(feedsim.Fail(transient))
			ctx, cancel := context.WithCancel(context.Background())
			s := NewScheduler(feedDouble, store, disp, WithRetries(4), WithSleep(func(context.Context, time.Duration) error {
				cancel()
				return context.Canceled
			}))
			err := s.PollOnce(ctx)

			Convey("Then no further attempt starts", func() {
				So(err, ShouldNotBeNil)
				So(feedDouble.Calls(), ShouldEqual, 1)
			})
		})
	})
}

func TestScheduler_SingleFlight(t *testing.T) {
	Convey("Given a feed that blocks until released", t, func() {
		release := make(chan struct{})
		entered := make(chan struct{}, 16)
		client := feed.ClientFunc(func(ctx context.Context) ([]model.Snapshot, error) {
			entered <- struct{}{}
			select {
			case <-release:
				return []model.Snapshot{live("1", 0, 0, 1)}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
		s := NewScheduler(client, repository.NewMatchStore(), &recordingDispatcher{}, WithInterval(5*time.Millisecond))

		Convey("When a second poll is attempted while one runs", func() {
			errCh := make(chan error, 1)
			go func() { errCh <- s.PollOnce(context.Background()) }()
			<-entered

			err := s.PollOnce(context.Background())
			close(release)

			Convey("Then it is refused", func() {
				So(errors.Is(err, ErrPollInFlight), ShouldBeTrue)
				So(<-errCh, ShouldBeNil)
			})
		})

		Convey("When ticks fire during a slow poll", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				s.Run(ctx)
				close(done)
			}()
			<-entered
			time.Sleep(50 * time.Millisecond)
			cancel()
			close(release)

			Convey("Then they are skipped and Run waits for the poll", func() {
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					t.Fatal("Run did not return")
				}
				st := s.Stats()
				So(st.SkippedTicks, ShouldBeGreaterThan, int64(0))
				So(st.Polls, ShouldEqual, int64(1))
				So(st.Tracked, ShouldEqual, 1)
			})
		})
	})
}
