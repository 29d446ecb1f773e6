// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Projection modes used as label values.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// Outcome label values.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Projection metrics
	ProjectionsTotal   *prometheus.CounterVec
	ProjectionDuration *prometheus.HistogramVec
	PathsSimulated     prometheus.Counter
	SuccessProbability prometheus.Histogram

	// Cache metrics
	CacheLookups *prometheus.CounterVec

	// Run lifecycle metrics
	RunTransitions *prometheus.CounterVec
	JobsPublished  *prometheus.CounterVec
	PlansRefreshed prometheus.Counter
	BandExports    *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Security metrics
	RateLimitHits      prometheus.Counter
	SuspiciousRequests prometheus.Counter
}

// NewMetrics creates a Metrics instance registered on its own registry,
// together with the Go runtime and process collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "patrimonio"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ProjectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "runs_total",
			Help:      "Total number of projections by mode and status",
		}, []string{"mode", "status"}),
		ProjectionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "duration_seconds",
			Help:      "Projection execution duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"mode"}),
		PathsSimulated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "paths_simulated_total",
			Help:      "Total number of simulated wealth paths",
		}),
		SuccessProbability: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "success_probability_percent",
			Help:      "Distribution of goal success probabilities",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by outcome",
		}, []string{"result"}),

		RunTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "transitions_total",
			Help:      "Projection run status transitions",
		}, []string{"status"}),
		JobsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "amqp",
			Name:      "jobs_published_total",
			Help:      "Projection jobs published to the broker by status",
		}, []string{"status"}),
		PlansRefreshed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plans",
			Name:      "refreshed_total",
			Help:      "Saved plans queued for a refreshed projection",
		}),
		BandExports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sheets",
			Name:      "exports_total",
			Help:      "Percentile band exports by status",
		}, []string{"status"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by the per-client rate limiter",
		}),
		SuspiciousRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "suspicious_requests_total",
			Help:      "Requests matching a known attack pattern",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordProjection records one finished projection.
func (m *Metrics) RecordProjection(mode, status string, samples int, d time.Duration) {
	if m == nil {
		return
	}
	m.ProjectionsTotal.WithLabelValues(mode, status).Inc()
	m.ProjectionDuration.WithLabelValues(mode).Observe(d.Seconds())
	if status == StatusOK {
		m.PathsSimulated.Add(float64(samples))
	}
}

func (m *Metrics) RecordSuccessProbability(p float64) {
	if m == nil {
		return
	}
	m.SuccessProbability.Observe(p)
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRunTransition(status string) {
	if m == nil {
		return
	}
	m.RunTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordJobPublished(err error) {
	if m == nil {
		return
	}
	m.JobsPublished.WithLabelValues(statusOf(err)).Inc()
}

func (m *Metrics) RecordPlanRefreshed() {
	if m == nil {
		return
	}
	m.PlansRefreshed.Inc()
}

func (m *Metrics) RecordBandExport(err error) {
	if m == nil {
		return
	}
	m.BandExports.WithLabelValues(statusOf(err)).Inc()
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitHits.Inc()
}

func (m *Metrics) RecordSuspicious() {
	if m == nil {
		return
	}
	m.SuspiciousRequests.Inc()
}

// Middleware counts requests and observes their latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
