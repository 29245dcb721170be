// Package metrics provides Prometheus metrics for the tracker service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tracker"

var (
	// SyncRunsTotal tracks sync runs by provider and result code
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of mailbox sync runs by provider and result",
		},
		[]string{"provider", "result"},
	)

	// SyncRunDuration tracks the duration of one integration sync
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of mailbox sync runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider"},
	)

	// MessagesTotal tracks messages by reconciliation outcome
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "messages_total",
			Help:      "Total number of fetched messages by outcome",
		},
		[]string{"outcome"},
	)

	// ClassificationsTotal tracks which classifier path produced a judgment
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "judgments_total",
			Help:      "Total number of classifications by source and category",
		},
		[]string{"source", "category"},
	)

	// ClassifierCacheTotal tracks judgment cache lookups
	ClassifierCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "cache_lookups_total",
			Help:      "Total number of judgment cache lookups by result",
		},
		[]string{"result"},
	)

	// LLMRequestDuration tracks text generation latency
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Duration of text generation requests in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"model", "status"},
	)

	// ProviderRequestsTotal tracks mailbox API calls
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Total number of mailbox provider API requests",
		},
		[]string{"provider", "operation", "status"},
	)

	// AuthTokenRefreshes tracks OAuth token refresh operations
	AuthTokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_refreshes_total",
			Help:      "Total number of OAuth token refresh operations",
		},
		[]string{"status"},
	)

	// SchedulerTicks tracks scheduler batches and how many integrations they picked
	SchedulerTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of scheduler batches",
		},
	)

	// SchedulerEligible tracks integrations picked per batch
	SchedulerEligible = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "eligible_integrations",
			Help:      "Number of integrations eligible per scheduler batch",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	// CircuitBreakerTransitions tracks breaker state changes
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Total number of circuit breaker state changes",
		},
		[]string{"name", "to"},
	)

	// HTTPRequestsTotal tracks inbound API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)
)

// Status labels shared by the counters above.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// StatusLabel maps an error to a status label.
func StatusLabel(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}
