package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should use the default names", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "scoreline")
				So(manager.subsystem, ShouldEqual, "reconciler")
			})
		})

		Convey("When creating with custom buckets", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithPrometheusRegistry(registry),
			)
			manager.polls.WithLabelValues("success").Inc()

			Convey("Then metrics land on the given registry with the default names", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "scoreline_reconciler_polls_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 2, 3})
			})
		})

		Convey("When empty values are passed", func() {
			manager := NewManager(
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.histogramBuckets, ShouldNotBeEmpty)
				So(manager.histogramBuckets[len(manager.histogramBuckets)-1], ShouldEqual, 30000.0)
			})
		})

		Convey("When inspecting the global manager", func() {
			Convey("Then its buckets cover rate-limit pauses", func() {
				So(globalManager.histogramBuckets[len(globalManager.histogramBuckets)-1], ShouldEqual, 120000.0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording polls", func() {
			before := testutil.ToFloat64(globalManager.polls.WithLabelValues("success"))
			RecordPoll(true, 120*time.Millisecond)
			RecordPoll(false, time.Second)

			Convey("Then counters and the status gauge move", func() {
				So(testutil.ToFloat64(globalManager.polls.WithLabelValues("success")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.lastPollStatus), ShouldEqual, 0.0)
			})
		})

		Convey("When recording snapshot totals", func() {
			before := testutil.ToFloat64(globalManager.snapshots.WithLabelValues("rejected"))
			RecordSnapshots(5, 2, 1)

			Convey("Then each result label is added", func() {
				So(testutil.ToFloat64(globalManager.snapshots.WithLabelValues("rejected")), ShouldEqual, before+2)
			})
		})

		Convey("When recording delivery metrics", func() {
			before := testutil.ToFloat64(globalManager.deliveries.WithLabelValues("discord", "dropped"))
			RecordDelivery("discord", "dropped")
			UpdateSinkQueueSize("discord", 7)

			Convey("Then they are labelled per sink", func() {
				So(testutil.ToFloat64(globalManager.deliveries.WithLabelValues("discord", "dropped")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.sinkQueueSize.WithLabelValues("discord")), ShouldEqual, 7.0)
			})
		})

		Convey("When recording everything else", func() {
			Convey("Then nothing panics", func() {
				So(func() {
					RecordTickSkipped()
					RecordFetchAttempt()
					RecordFetchError("transient")
					RecordEventEmitted("goal_scored")
					RecordEventDuplicate()
					UpdateTrackedMatches(4)
					RecordEviction("absent")
					RecordViewPublish(time.Millisecond)
					RecordDeliveryLatency("log", 3*time.Millisecond)
					UpdateWebsocketClients(2)
					RecordHTTPRequest("/healthz", "GET", "200")
					RecordHTTPRequestDuration("/healthz", "GET", "200", 1.5)
					RecordErrorByComponent("feed", "timeout")
				}, ShouldNotPanic)
			})
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordTickSkipped()
		reg := GetRegistry()

		Convey("Then it exposes scoreline metrics", func() {
			So(reg, ShouldNotBeNil)
			families, err := reg.Gather()
			So(err, ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			So(strings.Join(names, ","), ShouldContainSubstring, "scoreline_reconciler_ticks_skipped_total")
		})
	})
}
