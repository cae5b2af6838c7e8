// Package smpmetrics exposes Prometheus metrics for the download,
// container, and validator pipelines.
package smpmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ResourcesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smp_resources_fetched_total",
			Help: "Total number of resources successfully fetched by the scheduler",
		},
		[]string{"kind"},
	)

	ResourcesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smp_resources_skipped_total",
			Help: "Total number of resources skipped per failure policy",
		},
		[]string{"kind", "reason"},
	)

	ResourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smp_resource_fetch_duration_seconds",
			Help:    "Resource fetch duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"kind"},
	)

	PlanSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smp_plan_size",
			Help: "Number of resources in the current download plan",
		},
		[]string{"run_id"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smp_queue_depth",
			Help: "Current depth of the scheduler's inbound/outbound queues",
		},
		[]string{"queue"},
	)

	ReorderBufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smp_reorder_buffer_size",
			Help: "Number of out-of-order resources currently held by the writer's reorder buffer",
		},
	)

	ArchiveBytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smp_archive_bytes_written_total",
			Help: "Total compressed bytes written to SMP archives",
		},
		[]string{"run_id"},
	)

	ValidatorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smp_validator_runs_total",
			Help: "Total validator runs by outcome",
		},
		[]string{"outcome"},
	)

	RateLimitWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smp_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting on the per-host rate limiter",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"host"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smp_errors_total",
			Help: "Total errors by component and kind",
		},
		[]string{"component", "kind"},
	)
)

// RecordFetch records the outcome of a single resource fetch attempt.
func RecordFetch(kind string, success bool, reason string) {
	if success {
		ResourcesFetchedTotal.WithLabelValues(kind).Inc()
		return
	}
	ResourcesSkippedTotal.WithLabelValues(kind, reason).Inc()
}

// RecordError increments the error counter for a component/kind pair.
func RecordError(component, kind string) {
	ErrorsTotal.WithLabelValues(component, kind).Inc()
}
