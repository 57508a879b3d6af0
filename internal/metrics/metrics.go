// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Resolver
	ResolverVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestwatch_resolver_verdicts_total",
			Help: "Active-source resolutions by verdict",
		},
		[]string{"verdict"}, // main, backup, none
	)

	ResolverSignalFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestwatch_resolver_signal_failures_total",
			Help: "Telemetry calls that failed during resolution, by signal",
		},
		[]string{"signal"},
	)

	ResolverDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingestwatch_resolver_duration_seconds",
			Help:    "Duration of a full active-source resolution",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Alerting
	AlertsNotified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestwatch_alerts_notified_total",
			Help: "Alert conditions passed to the notifier, by severity",
		},
		[]string{"severity"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestwatch_alerts_suppressed_total",
			Help: "Alert conditions suppressed by the dedup cache, by reason",
		},
		[]string{"reason"}, // cleared, stale, duplicate
	)

	DedupCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingestwatch_dedup_cache_entries",
			Help: "Entries currently held by the alert dedup cache",
		},
	)

	NotifyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestwatch_notify_failures_total",
			Help: "Notification deliveries that failed, by notifier",
		},
		[]string{"notifier"},
	)

	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestwatch_webhook_requests_total",
			Help: "Inbound webhook requests by source and result",
		},
		[]string{"source", "result"}, // result: accepted, ignored, rejected, malformed, limited
	)

	AlertPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestwatch_alert_polls_total",
			Help: "Polled alert checks by result",
		},
		[]string{"result"},
	)

	// Topology
	TopologyCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestwatch_topology_cache_total",
			Help: "Topology snapshot lookups by cache result",
		},
		[]string{"result"}, // hit, miss, stale
	)

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingestwatch_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingestwatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestwatch_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestwatch_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)
