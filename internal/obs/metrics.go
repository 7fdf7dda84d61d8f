package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	authzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization decisions by scheme and outcome.",
		},
		[]string{"scheme", "outcome"},
	)

	authzDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "authz_decision_seconds",
		Help:    "Latency of full authorization decisions.",
		Buckets: prometheus.DefBuckets,
	})

	rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ratelimit_throttled_total",
		Help: "Requests denied by the rate limiter.",
	})

	auditFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_append_failures_total",
		Help: "Audit entries that could not be persisted.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Init registers gateway metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		authzDecisions,
		authzDuration,
		rateLimited,
		auditFailures,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDecision records one authorization decision.
func ObserveDecision(scheme, outcome string, d time.Duration) {
	authzDecisions.WithLabelValues(scheme, outcome).Inc()
	authzDuration.Observe(d.Seconds())
}

// RateLimited counts a throttled request.
func RateLimited() {
	rateLimited.Inc()
}

// AuditAppendFailure counts an audit write that fell back to the side channel.
func AuditAppendFailure() {
	auditFailures.Inc()
}

// Instrument wraps an HTTP handler with request counters and latency histograms.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
	})
}

// statusWriter captures the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
