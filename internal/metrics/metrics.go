// Package metrics exposes Prometheus collectors for the rewriter service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	rewriteTasksTotal         *prometheus.CounterVec
	rewriteDurationSeconds    prometheus.Histogram
	rewriteScore              prometheus.Histogram
	activeRewrites            prometheus.Gauge
	generationAttemptsTotal   prometheus.Counter
	allocatorAssignmentsTotal *prometheus.CounterVec
	allocatorSkippedTotal     prometheus.Counter

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		rewriteTasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewriter_tasks_total",
				Help: "Total number of rewrite tasks finished, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		rewriteDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rewriter_task_duration_seconds",
				Help:    "Histogram of end-to-end rewrite task durations.",
				Buckets: []float64{1, 5, 15, 60, 120, 300, 600, 1200},
			},
		)

		rewriteScore = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rewriter_originality_score",
				Help:    "Histogram of originality scores on completed rewrites.",
				Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		)

		activeRewrites = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rewriter_active_tasks",
				Help: "Number of rewrite tasks currently processing.",
			},
		)

		generationAttemptsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rewriter_generation_attempts_total",
				Help: "Total attempts issued against the generative endpoint.",
			},
		)

		allocatorAssignmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewriter_allocator_assignments_total",
				Help: "Total articles assigned to output domains, labeled by domain.",
			},
			[]string{"domain"},
		)

		allocatorSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rewriter_allocator_skipped_total",
				Help: "Articles left unassigned because no domain had quota.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTask records the outcome and duration of one finished task.
func ObserveTask(outcome string, duration time.Duration) {
	rewriteTasksTotal.WithLabelValues(outcome).Inc()
	rewriteDurationSeconds.Observe(duration.Seconds())
}

// ObserveScore records the originality score of a completed rewrite.
func ObserveScore(score int) {
	rewriteScore.Observe(float64(score))
}

// IncActiveRewrites increments the processing gauge.
func IncActiveRewrites() {
	activeRewrites.Inc()
}

// DecActiveRewrites decrements the processing gauge.
func DecActiveRewrites() {
	activeRewrites.Dec()
}

// ObserveGenerationAttempt counts one attempt against the endpoint.
func ObserveGenerationAttempt() {
	generationAttemptsTotal.Inc()
}

// ObserveAssignment counts one article assigned to a domain.
func ObserveAssignment(domain string) {
	allocatorAssignmentsTotal.WithLabelValues(domain).Inc()
}

// ObserveAllocationSkipped counts one article left for a later cycle.
func ObserveAllocationSkipped() {
	allocatorSkippedTotal.Inc()
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
