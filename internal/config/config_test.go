package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/scoreline/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.PollInterval(), convey.ShouldEqual, 60*time.Second)
			convey.So(cfg.AbsenceThreshold, convey.ShouldEqual, 3)
			convey.So(cfg.EndedRetentionPolls, convey.ShouldEqual, 10)
			convey.So(cfg.FetchTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.FetchRetries, convey.ShouldEqual, 3)
			convey.So(cfg.BackoffBase(), convey.ShouldEqual, time.Second)
			convey.So(cfg.BackoffMax(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.RateLimitWait(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.SinkQueueSize, convey.ShouldEqual, 256)
			convey.So(cfg.SendTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.ShutdownTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.FeedCompetitions, convey.ShouldResemble, []string{"PL", "PD", "CL"})
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config", t, func() {
		cfg := config.New()

		convey.Convey("When the poll interval is too short", func() {
			cfg.PollIntervalSeconds = 2
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "poll_interval_seconds")
		})

		convey.Convey("When several values are out of range", func() {
			cfg.Addr = ""
			cfg.AbsenceThreshold = 0
			cfg.BackoffMaxMS = 10
			cfg.SinkQueueSize = 0
			err := cfg.Validate()

			convey.Convey("Then every problem is reported", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr")
				convey.So(err.Error(), convey.ShouldContainSubstring, "absence_threshold")
				convey.So(err.Error(), convey.ShouldContainSubstring, "backoff_max_ms")
				convey.So(err.Error(), convey.ShouldContainSubstring, "sink_queue_size")
			})
		})

		convey.Convey("When a discord token has no channel", func() {
			cfg.DiscordToken = "abc"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When retries are zero", func() {
			cfg.FetchRetries = 0
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
