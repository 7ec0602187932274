package middleware

import (
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const latencyWindowSize = 200

type telemetryRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *telemetryRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *telemetryRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(data)
	r.bytes += n
	return n, err
}

// latencyRing keeps the last N samples of one route.
type latencyRing struct {
	samples []int64
	next    int
}

func (w *latencyRing) add(value int64, size int) {
	if len(w.samples) < size {
		w.samples = append(w.samples, value)
		return
	}
	w.samples[w.next] = value
	w.next = (w.next + 1) % size
}

type latencyAggregator struct {
	mu     sync.Mutex
	size   int
	routes map[string]*latencyRing
}

func newLatencyAggregator(size int) *latencyAggregator {
	return &latencyAggregator{size: size, routes: make(map[string]*latencyRing)}
}

// record adds a sample for key and returns the route's current p50 and p95.
func (a *latencyAggregator) record(key string, value int64) (int64, int64) {
	a.mu.Lock()
	ring, ok := a.routes[key]
	if !ok {
		ring = &latencyRing{}
		a.routes[key] = ring
	}
	ring.add(value, a.size)
	values := append([]int64(nil), ring.samples...)
	a.mu.Unlock()

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return percentile(values, 0.5), percentile(values, 0.95)
}

func percentile(values []int64, p float64) int64 {
	if len(values) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}

var telemetryLatency = newLatencyAggregator(latencyWindowSize)

// Telemetry logs one structured line per request with rolling latency
// percentiles for its route.
func Telemetry(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &telemetryRecorder{ResponseWriter: w}

			next.ServeHTTP(recorder, r)

			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			routePattern := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				routePattern = rc.RoutePattern()
			}
			metricKey := r.Method + " " + routePattern
			if routePattern == "" {
				metricKey = r.Method + " " + r.URL.Path
			}
			p50, p95 := telemetryLatency.record(metricKey, duration.Milliseconds())

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("routePattern", routePattern),
				zap.String("requestId", readRequestID(r)),
				zap.Int("status", status),
				zap.Int("bytes", recorder.bytes),
				zap.Int64("duration_ms", duration.Milliseconds()),
				zap.Int64("p50_ms", p50),
				zap.Int64("p95_ms", p95),
			}

			switch {
			case status >= 500:
				logger.Error("http_request", fields...)
			case status >= 400:
				logger.Warn("http_request", fields...)
			default:
				logger.Info("http_request", fields...)
			}
		})
	}
}
