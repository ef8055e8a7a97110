package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeConfirmed = "confirmed"
	OutcomeFailed    = "failed"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spldeploy",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spldeploy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	workflowSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spldeploy",
			Subsystem: "workflow",
			Name:      "steps_total",
			Help:      "Token creation steps by outcome.",
		},
		[]string{"step", "outcome"},
	)
	workflowStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spldeploy",
			Subsystem: "workflow",
			Name:      "step_duration_seconds",
			Help:      "Time from submission to confirmation of a step.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90, 120},
		},
		[]string{"step", "outcome"},
	)
	workflowRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spldeploy",
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Finished token creation runs by final status.",
		},
		[]string{"status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, workflowSteps, workflowStepDuration, workflowRuns)
	})
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
}

// RecordStep counts one attempt of a workflow step
func RecordStep(step, outcome string, duration time.Duration) {
	RegisterMetrics()
	workflowSteps.WithLabelValues(step, outcome).Inc()
	workflowStepDuration.WithLabelValues(step, outcome).Observe(duration.Seconds())
}

// RecordRun counts a run that finished with status
func RecordRun(status string) {
	RegisterMetrics()
	workflowRuns.WithLabelValues(status).Inc()
}

// RequestMetrics records request count and latency per ServeMux pattern.
// Requests no pattern matched share one label.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}
