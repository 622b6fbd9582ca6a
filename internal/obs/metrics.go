package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guarantee_mutations_total",
			Help: "Guarantee mutations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	policyDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_decisions_total",
			Help: "Region policy decisions by action and result.",
		},
		[]string{"action", "decision"},
	)

	initOnce sync.Once
)

// Init registers the collectors in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, mutationsTotal, policyDecisionsTotal)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveMutation counts a create or deactivate attempt by outcome label.
func ObserveMutation(operation, outcome string) {
	mutationsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObservePolicy counts a policy decision.
func ObservePolicy(action string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	policyDecisionsTotal.WithLabelValues(action, decision).Inc()
}

// RouteFunc returns the route template that served r, or "" when no route matched.
// It is called after the handler has run.
type RouteFunc func(r *http.Request) string

// Instrument measures request count, latency and in-flight requests, labelled by route
// template so that ids in paths do not multiply series.
func Instrument(route RouteFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpInFlight.Inc()
			defer httpInFlight.Dec()
			start := time.Now()

			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sw, r)

			label := "unmatched"
			if route != nil {
				if v := route(r); v != "" {
					label = v
				}
			}
			status := strconv.Itoa(sw.code)
			httpRequestDuration.WithLabelValues(r.Method, label, status).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(r.Method, label, status).Inc()
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Flush keeps streaming responses working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
