package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "manifestgen_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	requestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "manifestgen_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	responseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "manifestgen_http_response_size_bytes",
			Help:    "HTTP response body size in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"endpoint"},
	)

	PanicsRecoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "manifestgen_panics_recovered_total",
			Help: "Total number of recovered panics",
		},
	)
)

// Metrics returns a middleware that collects Prometheus metrics
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := newStatusRecorder(w)

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		endpoint := routePattern(r)

		requestDuration.WithLabelValues(r.Method, endpoint, status).Observe(time.Since(start).Seconds())
		requestCount.WithLabelValues(r.Method, endpoint, status).Inc()
		responseSize.WithLabelValues(endpoint).Observe(float64(wrapped.bytes))
	})
}

// routePattern uses the chi route pattern to keep label cardinality bounded
func routePattern(r *http.Request) string {
	endpoint := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			endpoint = pattern
		}
	}
	endpoint = strings.TrimRight(endpoint, "/")
	if endpoint == "" {
		endpoint = "/"
	}
	return endpoint
}
