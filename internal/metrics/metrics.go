// Package metrics provides Prometheus metrics for the orchestrator service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "agentos"
	subsystem = "orchestrator"
)

var (
	// SessionsTotal counts finished sessions by status.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_total",
			Help:      "Total number of orchestration sessions by final status",
		},
		[]string{"status"}, // "completed", "partial", "failed"
	)

	// SessionsActive tracks sessions currently executing.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_active",
			Help:      "Number of orchestration sessions in progress",
		},
	)

	// SessionDuration tracks end-to-end session latency.
	SessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_duration_seconds",
			Help:      "Orchestration session duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	// StrategiesTotal counts execution strategies chosen by the planner.
	StrategiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "strategies_total",
			Help:      "Execution strategies selected",
		},
		[]string{"strategy"},
	)

	// AgentInvocationsTotal counts agent calls by outcome.
	AgentInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "agent_invocations_total",
			Help:      "Total number of agent invocations",
		},
		[]string{"agent", "outcome"}, // outcome: success, failed, timeout
	)

	// AgentInvocationDuration tracks agent call latency.
	AgentInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "agent_invocation_duration_seconds",
			Help:      "Agent invocation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"agent"},
	)

	// AgentRetries tracks attempts per finished invocation.
	AgentRetries = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "agent_attempts",
			Help:      "Number of attempts per agent invocation",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"outcome"},
	)

	// FallbacksTotal counts heuristic fallbacks by pipeline stage.
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fallbacks_total",
			Help:      "Heuristic fallbacks taken by stage",
		},
		[]string{"stage"}, // analyzer, decomposer, matcher
	)

	// EventsTotal counts events emitted by type.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_total",
			Help:      "Total number of events emitted",
		},
		[]string{"type"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// StreamConnections tracks open event stream clients.
	StreamConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stream_connections",
			Help:      "Open event stream connections",
		},
		[]string{"transport"}, // sse, ws
	)

	// SessionStoreOperations counts session store operations.
	SessionStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessionstore_operations_total",
			Help:      "Total number of session store operations",
		},
		[]string{"operation", "result"}, // operation: create, update, get; result: success, error
	)

	// ArchiveWrites counts session archive uploads.
	ArchiveWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "archive_writes_total",
			Help:      "Session archive writes",
		},
		[]string{"result"},
	)

	// SchedulerInFlight tracks assignments currently running.
	SchedulerInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_inflight",
			Help:      "Number of agent assignments currently running",
		},
	)
)

// RecordStoreOp counts one session store operation.
func RecordStoreOp(op string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	SessionStoreOperations.WithLabelValues(op, result).Inc()
}
