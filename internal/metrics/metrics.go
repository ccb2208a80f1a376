// Package metrics exposes Prometheus instrumentation for the alert engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduler metrics
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertd_scheduler_ticks_total",
			Help: "Total number of scheduler ticks",
		},
	)

	DueAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertd_scheduler_due_alerts",
			Help: "Number of alerts due on the most recent tick",
		},
	)

	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertd_evaluations_total",
			Help: "Total number of alert evaluations",
		},
		[]string{"result"}, // result: triggered, not_satisfied, feed_error
	)

	TriggersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertd_triggers_total",
			Help: "Total number of alerts transitioned to triggered",
		},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alertd_tick_duration_seconds",
			Help:    "Time taken to evaluate one scheduler tick",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// Feed metrics
	FeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertd_feed_requests_total",
			Help: "Total number of metric feed lookups",
		},
		[]string{"asset_type", "status"}, // status: success, failed
	)

	// Notification metrics
	NotifyFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertd_notify_failures_total",
			Help: "Total number of failed notification deliveries",
		},
		[]string{"channel"},
	)

	// Store metrics
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertd_store_errors_total",
			Help: "Total number of alert store errors",
		},
		[]string{"op"},
	)
)
