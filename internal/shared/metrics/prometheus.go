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

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Interview metrics
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_turns_total",
			Help: "Total number of conversation turns by outcome",
		},
		[]string{"outcome"},
	)

	interviewsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_interviews_completed_total",
			Help: "Total number of interviews that reached a final assessment",
		},
		[]string{"triage_level"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "triage_sessions_active",
			Help: "Number of sessions currently held by the session store",
		},
	)

	translatorHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_translator_strategy_hits_total",
			Help: "Symptom translations resolved per strategy",
		},
		[]string{"strategy"},
	)

	// Upstream metrics
	oracleRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_oracle_request_duration_seconds",
			Help:    "Diagnostic oracle request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status"},
	)

	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_llm_calls_total",
			Help: "Language model calls per primitive and result",
		},
		[]string{"primitive", "result"},
	)

	wearableFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_wearable_fetch_total",
			Help: "Wearable vitals fetches per provider and result",
		},
		[]string{"provider", "result"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routePattern labels requests by their chi route template so that
// unmatched paths cannot blow up label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// --- Interview metric helpers ---

// RecordTurn records a finished conversation turn
func RecordTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}

// RecordInterviewCompleted records a final assessment
func RecordInterviewCompleted(triageLevel string) {
	interviewsCompleted.WithLabelValues(triageLevel).Inc()
}

// SetSessionsActive records the number of stored sessions
func SetSessionsActive(count int) {
	sessionsActive.Set(float64(count))
}

// RecordTranslatorHit records which translation strategy produced evidence
func RecordTranslatorHit(strategy string) {
	translatorHits.WithLabelValues(strategy).Inc()
}

// RecordOracleRequest records a call to the diagnostic oracle
func RecordOracleRequest(endpoint string, status int, duration time.Duration) {
	oracleRequestDuration.WithLabelValues(endpoint, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordLLMCall records a language model primitive call
func RecordLLMCall(primitive string, ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	llmCallsTotal.WithLabelValues(primitive, result).Inc()
}

// RecordWearableFetch records a vitals fetch from a wearable provider
func RecordWearableFetch(provider string, ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	wearableFetchTotal.WithLabelValues(provider, result).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
