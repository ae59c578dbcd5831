// Package metrics exposes the process Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailcore_tx_retries_total",
			Help: "Number of transactions retried after a transient failure.",
		},
	)
	TxFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailcore_tx_failures_total",
			Help: "Number of transactions that failed, by kind.",
		},
		[]string{
			"kind", // transient, logical
		},
	)
	Recalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailcore_counter_recalculations_total",
			Help: "Number of folder counter recalculations, by reason.",
		},
		[]string{
			"reason", // delta_rejected, scheduled, manual
		},
	)
	FilterActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailcore_filter_actions_total",
			Help: "Number of filter actions applied, by action and result.",
		},
		[]string{
			"action",
			"result", // ok, error, target_missing
		},
	)
	RulesDisabled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailcore_filter_rules_disabled_total",
			Help: "Number of filter rules disabled because an action target was missing.",
		},
	)
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailcore_deliveries_total",
			Help: "Number of delivered messages, by result.",
		},
		[]string{
			"result", // stored, duplicate, error
		},
	)
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailcore_events_dropped_total",
			Help: "Number of outbound events dropped because the queue was full.",
		},
	)
	JobUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailcore_job_units_total",
			Help: "Number of background job units, by job and result.",
		},
		[]string{
			"job",
			"result", // ok, error, skipped
		},
	)
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailcore_job_duration_seconds",
			Help:    "Duration of background jobs.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
		[]string{"job"},
	)
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailcore_http_requests_total",
			Help: "Number of HTTP requests, by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailcore_http_request_duration_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
