package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beacon_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	remindersGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_reminders_generated_total",
			Help: "Daily reminders inserted by the generator, per category",
		},
		[]string{"category"},
	)

	generatorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_generator_errors_total",
			Help: "Per-user/category errors skipped by the generator loop",
		},
		[]string{"category"},
	)

	remindersDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_class_reminders_dispatched_total",
			Help: "Class reminders delivered, per channel",
		},
		[]string{"channel"},
	)

	dispatchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_dispatch_errors_total",
			Help: "Provider failures while sending class reminders",
		},
	)

	catalogUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_catalog_upserts_total",
			Help: "Catalog sync results by outcome",
		},
		[]string{"outcome"},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
		[]string{"key"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordReminderGenerated records a generator insert for a category
func RecordReminderGenerated(category string) {
	remindersGenerated.WithLabelValues(category).Inc()
}

// RecordGeneratorError records a skipped per-item generator failure
func RecordGeneratorError(category string) {
	generatorErrors.WithLabelValues(category).Inc()
}

// RecordReminderDispatched records a successful class reminder delivery
func RecordReminderDispatched(channel string) {
	remindersDispatched.WithLabelValues(channel).Inc()
}

// RecordDispatchError records a provider send failure
func RecordDispatchError() {
	dispatchErrors.Inc()
}

// RecordCatalogUpsert records a sync outcome: created, updated or failed
func RecordCatalogUpsert(outcome string) {
	catalogUpserts.WithLabelValues(outcome).Inc()
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection(key string) {
	rateLimitRejections.WithLabelValues(key).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
