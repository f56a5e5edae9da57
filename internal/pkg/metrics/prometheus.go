package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "l2m"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Analytics engine client metrics
	engineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "requests_total",
			Help:      "Total number of requests sent to the analytics engine",
		},
		[]string{"operation", "status"},
	)

	engineRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "request_duration_seconds",
			Help:      "Analytics engine request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	// Provisioning metrics
	provisionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provisioner",
			Name:      "operations_total",
			Help:      "Total number of provision and deprovision operations",
		},
		[]string{"operation", "result"},
	)

	provisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provisioner",
			Name:      "operation_duration_seconds",
			Help:      "Duration of provision and deprovision operations in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// Guardrail metrics
	guardrailChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guardrail",
			Name:      "checks_total",
			Help:      "Guardrail check outcomes by check name",
		},
		[]string{"check", "result"},
	)

	// Health reconciler metrics
	reconcilerCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "cycles_total",
			Help:      "Total number of health reconciliation cycles",
		},
		[]string{"result"},
	)

	reconcilerCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a health reconciliation cycle in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120},
		},
	)

	reconcilerRulesInError = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "rules_in_error",
			Help:      "Number of rules found in error by the last reconciliation cycle",
		},
	)

	reconcilerLastCycle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed reconciliation cycle",
		},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MustRegister registers extra collectors on the default registry
func MustRegister(cs ...prometheus.Collector) {
	prometheus.MustRegister(cs...)
}

// RecordEngineRequest records one call to the analytics engine
func RecordEngineRequest(operation string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	engineRequestsTotal.WithLabelValues(operation, status).Inc()
	engineRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordProvision records a provision or deprovision outcome
func RecordProvision(operation string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	provisionTotal.WithLabelValues(operation, result).Inc()
	provisionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordGuardrailCheck records the outcome of one guardrail check
func RecordGuardrailCheck(check string, passed bool) {
	result := "passed"
	if !passed {
		result = "failed"
	}
	guardrailChecksTotal.WithLabelValues(check, result).Inc()
}

// RecordReconcileCycle records a completed (or panicked) reconciliation cycle
func RecordReconcileCycle(ok bool, rulesInError int, duration time.Duration) {
	result := "ok"
	if !ok {
		result = "panic"
	}
	reconcilerCyclesTotal.WithLabelValues(result).Inc()
	reconcilerCycleDuration.Observe(duration.Seconds())
	reconcilerRulesInError.Set(float64(rulesInError))
	reconcilerLastCycle.SetToCurrentTime()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation, table string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
