package metrics

import (
	"net/http"
	"strconv"
	"time"

	"resto-ops-services/internal/apperror"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resto_ops_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resto_ops_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	lifecycleOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resto_ops_lifecycle_operations_total",
			Help: "Lifecycle engine operations by entity, operation and outcome",
		},
		[]string{"entity", "operation", "outcome"},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resto_ops_events_published_total",
			Help: "Side-effect events handed to the broker",
		},
		[]string{"routing_key", "status"},
	)

	chatMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resto_ops_chat_messages_total",
			Help: "Chat messages by level and local validation result",
		},
		[]string{"level", "result"},
	)
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := strconv.Itoa(rec.status)
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordLifecycle counts one engine call. outcome is "applied" or "noop" on
// success; failures are labelled with the error code.
func RecordLifecycle(entity, operation, outcome string, err error) {
	if err != nil {
		outcome = string(apperror.As(err).Code)
	}
	lifecycleOperations.WithLabelValues(entity, operation, outcome).Inc()
}

func RecordEvent(routingKey string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	eventsPublished.WithLabelValues(routingKey, status).Inc()
}

func RecordChatMessage(level int, valid bool) {
	result := "accepted"
	if !valid {
		result = "rejected"
	}
	chatMessages.WithLabelValues(strconv.Itoa(level), result).Inc()
}
