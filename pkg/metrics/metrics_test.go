package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the custom names", func() {
				m.ratingUpdates.WithLabelValues("team").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_updates_total")
			})

			Convey("Then constant labels are attached", func() {
				m.queueSize.Set(3)
				expected := `
# HELP test_unit_queue_size Tasks currently queued
# TYPE test_unit_queue_size gauge
test_unit_queue_size{env="test"} 3
`
				So(testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_unit_queue_size"), ShouldBeNil)
			})
		})

		Convey("When registering two managers on the same registry", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording rating updates", func() {
			before := testutil.ToFloat64(globalManager.ratingUpdates.WithLabelValues("coach"))
			RecordRatingUpdate("coach", -4.5)
			RecordRatingUpdate("coach", 2)

			Convey("Then the counter increases by two", func() {
				after := testutil.ToFloat64(globalManager.ratingUpdates.WithLabelValues("coach"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When setting gauges", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(100)
			UpdateWorkerCount(4)
			UpdateTrackedEntities("team", 32)

			Convey("Then the values are exposed", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.trackedEntities.WithLabelValues("team")), ShouldEqual, 32)
			})
		})

		Convey("When recording the remaining series", func() {
			So(func() {
				RecordRatingWriteError("team")
				RecordRun("ok")
				RecordRunPhase("week", 12)
				RecordGameSkipped("live")
				RecordWPNDuration(3)
				RecordStandingsLatency(1)
				RecordStoreLatency("upsert", 0.2)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError("closed")
				RecordWorkerProcessingLatency(5)
				RecordWorkerError()
				RecordHTTPRequest("standings", "GET", "200")
				RecordHTTPRequestDuration("standings", "GET", "200", 1.5)
				RecordCacheResult("hit")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
			}, ShouldNotPanic)

			Convey("Then the registry gathers without error", func() {
				_, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
			})
		})
	})
}
