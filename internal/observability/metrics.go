// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, route, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentgate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentgate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks the number of active SSE streaming responses.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentgate_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// BackendRequestsTotal counts agent invocations by mode and outcome.
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentgate_backend_requests_total",
			Help: "Backend agent invocations",
		},
		[]string{"agent", "mode", "outcome"},
	)

	// BackendLatency records agent invocation latency in seconds.
	BackendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentgate_backend_latency_seconds",
			Help:    "Backend agent latency",
			Buckets: LLMBuckets,
		},
		[]string{"agent", "mode"},
	)

	// StreamFailuresTotal counts streams that ended with a backend fault after
	// the response headers were sent.
	StreamFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentgate_stream_failures_total",
			Help: "Streams terminated by a backend fault",
		},
		[]string{"agent", "kind"},
	)

	// TokensTotal counts estimated tokens by direction (prompt/completion).
	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentgate_tokens_total",
			Help: "Token count",
		},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		BackendRequestsTotal,
		BackendLatency,
		StreamFailuresTotal,
		TokensTotal,
	)
}
