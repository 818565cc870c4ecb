package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a backend call
const (
	OutcomeOK           = "ok"
	OutcomeAPIError     = "api_error"
	OutcomeGenericError = "generic_error"
)

var (
	// Backend client metrics
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "learnify_backend_request_duration_seconds",
			Help:    "Latency of calls to the backend API in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learnify_backend_requests_total",
			Help: "Total number of calls to the backend API by outcome",
		},
		[]string{"method", "outcome"},
	)

	// Authentication metrics
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learnify_login_attempts_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"},
	)

	LogoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "learnify_logouts_total",
			Help: "Total number of logouts",
		},
	)

	// Route guard metrics
	GuardDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learnify_guard_decisions_total",
			Help: "Total number of route guard decisions",
		},
		[]string{"decision"},
	)
)

// RecordBackendRequest records one backend call
func RecordBackendRequest(method, outcome string, duration time.Duration) {
	BackendRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
	BackendRequestsTotal.WithLabelValues(method, outcome).Inc()
}

// RecordLogin records a login attempt
func RecordLogin(result string) {
	LoginAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordLogout records a logout
func RecordLogout() {
	LogoutsTotal.Inc()
}

// RecordGuardDecision records a route guard decision
func RecordGuardDecision(decision string) {
	GuardDecisionsTotal.WithLabelValues(decision).Inc()
}
