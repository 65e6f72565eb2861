package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestErrorKinds(t *testing.T) {
	Convey("Given classified feed errors", t, func() {
		rl := &Error{Kind: RateLimited, Op: "GET /matches", StatusCode: 429, RetryAfter: time.Minute}
		fatal := NewError(Fatal, "decode", errors.New("bad json"))

		Convey("Then errors.Is matches by kind", func() {
			So(errors.Is(rl, ErrRateLimited), ShouldBeTrue)
			So(errors.Is(rl, ErrTransient), ShouldBeFalse)
			So(errors.Is(fatal, ErrFatal), ShouldBeTrue)
		})

		Convey("Then wrapping keeps the kind reachable", func() {
			wrapped := fmt.Errorf("poll: %w", rl)
			So(errors.Is(wrapped, ErrRateLimited), ShouldBeTrue)
			var fe *Error
			So(errors.As(wrapped, &fe), ShouldBeTrue)
			So(fe.RetryAfter, ShouldEqual, time.Minute)
		})

		Convey("Then the message carries op and status", func() {
			So(rl.Error(), ShouldEqual, "feed rate_limited: GET /matches (status 429)")
			So(fatal.Error(), ShouldContainSubstring, "bad json")
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Given arbitrary errors", t, func() {
		Convey("When the error is nil", func() {
			So(Classify(nil), ShouldBeNil)
		})

		Convey("When the error is already classified", func() {
			in := NewError(Fatal, "GET", nil)
			So(Classify(fmt.Errorf("x: %w", in)), ShouldEqual, in)
		})

		Convey("When an attempt timed out", func() {
			So(Classify(context.DeadlineExceeded).Kind, ShouldEqual, Transient)
			So(Classify(timeoutErr{}).Kind, ShouldEqual, Transient)
		})

		Convey("When the error is unknown", func() {
			e := Classify(errors.New("weird"))
			So(e.Kind, ShouldEqual, Transient)
			So(errors.Is(e, ErrTransient), ShouldBeTrue)
		})
	})
}
