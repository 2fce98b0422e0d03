// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers, middleware, and the retriever.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/calvia/persona/internal/rag"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// Metrics holds all Prometheus instruments owned by the persona process.
// A single instance is created with NewMetrics and shared between the HTTP
// server, the retriever, and the tool sinks, so that tests can inject a fresh
// prometheus.Registry without polluting the default one.
type Metrics struct {
	// registry is the backing registry, also used to serve GET /metrics.
	registry *prometheus.Registry

	// chatRequestsTotal counts completed /api/chat requests, partitioned by
	// outcome: "ok", "timeout", or "error".
	chatRequestsTotal *prometheus.CounterVec

	// chatDurationSeconds records the wall-clock duration of each /api/chat
	// request from first byte received to stream completion.
	chatDurationSeconds *prometheus.HistogramVec

	// chatActiveStreams is the number of /api/chat SSE streams currently open.
	chatActiveStreams prometheus.Gauge

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// retrievalDurationSeconds records the latency of each chunk retrieval,
	// partitioned by outcome.
	retrievalDurationSeconds *prometheus.HistogramVec

	// toolCallsTotal counts agent tool invocations, partitioned by tool name.
	toolCallsTotal *prometheus.CounterVec
}

// NewMetrics registers all instruments against reg and returns the populated
// Metrics. promauto.With(reg) is used so that each call registers into the
// provided registry rather than the global default — this keeps unit tests
// hermetic.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		chatRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "persona",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of /api/chat requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		chatDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "persona",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/chat requests from receipt to stream completion.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		chatActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "persona",
			Subsystem: "chat",
			Name:      "active_streams",
			Help:      "Number of /api/chat SSE streams currently open.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "persona",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "persona",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		retrievalDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "persona",
			Subsystem: "rag",
			Name:      "retrieval_duration_seconds",
			Help:      "Latency of background chunk retrieval, partitioned by outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),

		toolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "persona",
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Total number of agent tool invocations, partitioned by tool name.",
		}, []string{"tool"}),
	}
}

// ObserveToolCall increments the tool-call counter for the named tool.
// Wired into the tool sinks' OnInvoke hook.
func (m *Metrics) ObserveToolCall(tool string) {
	m.toolCallsTotal.WithLabelValues(tool).Inc()
}

// TimeRetrieval wraps r so every Retrieve call is timed and recorded.
// A nil r returns nil so callers can wrap unconditionally.
func (m *Metrics) TimeRetrieval(r rag.Retriever) rag.Retriever {
	if r == nil {
		return nil
	}
	return &timedRetriever{inner: r, hist: m.retrievalDurationSeconds}
}

// timedRetriever decorates a rag.Retriever with a latency histogram.
type timedRetriever struct {
	inner rag.Retriever
	hist  *prometheus.HistogramVec
}

// Retrieve delegates to the wrapped retriever and records the elapsed time.
func (t *timedRetriever) Retrieve(ctx context.Context, query string, topK int) ([]rag.Result, error) {
	start := time.Now()
	results, err := t.inner.Retrieve(ctx, query, topK)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	t.hist.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return results, err
}

// instrument wraps next with HTTP request counting and latency observation,
// labelled with the logical handler name.
func (s *Server) instrument(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(elapsed.Seconds())
	})
}
