package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PushesTotal counts push attempts by feed, delivery path and outcome.
	PushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pusher_pushes_total",
			Help: "Total number of price push attempts (by feed, path and status).",
		},
		[]string{"feed", "path", "status"},
	)

	// PushStageFailures counts failed attempts by the stage that failed.
	PushStageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pusher_stage_failures_total",
			Help: "Number of failed push attempts by failing stage.",
		},
		[]string{"feed", "stage"},
	)

	// PushDuration measures end-to-end push latency.
	PushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pusher_push_duration_seconds",
			Help:    "Duration of a full push attempt in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms → ~100s
		},
		[]string{"feed", "path"},
	)

	// PayloadBytes tracks the size of fetched payloads.
	PayloadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pusher_payload_bytes",
			Help:    "Size of the signed price payload in bytes.",
			Buckets: prometheus.LinearBuckets(256, 256, 10),
		},
		[]string{"feed"},
	)

	// LastSuccess holds the unix time of the last successful push per feed.
	LastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pusher_last_success_timestamp_seconds",
			Help: "Unix time of the last successful push.",
		},
		[]string{"feed"},
	)

	// PriceReads counts on-chain price reads by cache result.
	PriceReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pusher_price_reads_total",
			Help: "On-chain price account reads (by feed and source: cache, rpc, error).",
		},
		[]string{"feed", "source"},
	)

	// EventPublishes counts event publications by sink and status.
	EventPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pusher_event_publishes_total",
			Help: "Number of push events published (by sink and status).",
		},
		[]string{"sink", "status"},
	)

	// SchedulerIterations counts scheduler iterations by outcome.
	SchedulerIterations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pusher_scheduler_iterations_total",
			Help: "Scheduler iterations (by outcome: ok, error).",
		},
		[]string{"outcome"},
	)
)

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}

// IncPush records the outcome of one push attempt.
func IncPush(feed, path, status string) {
	PushesTotal.WithLabelValues(feed, path, status).Inc()
}

// IncStageFailure records a failing stage.
func IncStageFailure(feed, stage string) {
	PushStageFailures.WithLabelValues(feed, stage).Inc()
}

// IncEventPublish records an event publication result.
func IncEventPublish(sink, status string) {
	EventPublishes.WithLabelValues(sink, status).Inc()
}

// IncSchedulerIteration records a scheduler iteration outcome.
func IncSchedulerIteration(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SchedulerIterations.WithLabelValues(outcome).Inc()
}
