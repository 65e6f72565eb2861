package wshub

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/scoreline/internal/adapters/notify"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestHub(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	Convey("Given a running hub behind an http server", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		hub := New()
		go hub.Run(ctx)
		srv := httptest.NewServer(hub)
		defer srv.Close()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		So(err, ShouldBeNil)
		defer conn.Close()
		So(waitFor(func() bool { return hub.Clients() == 1 }), ShouldBeTrue)

		ev := model.NewEvent(model.KindGoalScored, model.Snapshot{
			ID: "11", Competition: "pd", HomeName: "Real Madrid", AwayName: "Getafe",
			HomeScore: 1, ClockMinutes: 23, Status: model.StatusLive,
		})

		Convey("When an event is sent", func() {
			So(hub.Send(context.Background(), hub.Render(ev)), ShouldBeNil)

			Convey("Then the client receives the payload", func() {
				_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, data, err := conn.ReadMessage()
				So(err, ShouldBeNil)
				var p notify.Payload
				So(json.Unmarshal(data, &p), ShouldBeNil)
				So(p.MatchID, ShouldEqual, "11")
				So(p.Kind, ShouldEqual, "goal_scored")
				So(p.Fingerprint, ShouldEqual, "11|goal_scored|1-0")
			})
		})

		Convey("When the client disconnects", func() {
			_ = conn.Close()
			So(waitFor(func() bool { return hub.Clients() == 0 }), ShouldBeTrue)
		})

		Convey("When the hub is closed", func() {
			So(hub.Close(), ShouldBeNil)
			So(waitFor(func() bool {
				select {
				case <-hub.done:
					return true
				default:
					return false
				}
			}), ShouldBeTrue)
			So(hub.Clients(), ShouldEqual, 0)
			err := hub.Send(context.Background(), hub.Render(ev))
			So(errors.Is(err, ErrHubClosed), ShouldBeTrue)
		})
	})
}
