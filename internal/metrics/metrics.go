// Package metrics exposes Prometheus instruments for the analysis pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Analysis outcomes.
const (
	OutcomeCached   = "cached"
	OutcomeAI       = "ai"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

// Recorder holds the instruments. A nil *Recorder records nothing.
type Recorder struct {
	aiAttempts     *prometheus.CounterVec
	aiLatency      *prometheus.HistogramVec
	aiTokens       *prometheus.CounterVec
	analyses       *prometheus.CounterVec
	analysisTime   prometheus.Histogram
	storeFailures  *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	breakerRejects *prometheus.CounterVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		aiAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyst_ai_attempts_total",
				Help: "Completion attempts by provider, model and outcome",
			},
			[]string{"provider", "model", "outcome"},
		),
		aiLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analyst_ai_attempt_duration_seconds",
				Help:    "Duration of completion attempts in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90},
			},
			[]string{"provider", "model"},
		),
		aiTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyst_ai_tokens_total",
				Help: "Tokens reported by completion providers",
			},
			[]string{"provider", "model"},
		),
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyst_analyses_total",
				Help: "Analysis requests by outcome",
			},
			[]string{"outcome"},
		),
		analysisTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "analyst_analysis_duration_seconds",
				Help:    "End to end duration of computed analyses",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		storeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyst_store_failures_total",
				Help: "Failed cache operations",
			},
			[]string{"operation"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analyst_operation_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyst_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analyst_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 180},
			},
			[]string{"route", "method"},
		),
		breakerRejects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyst_circuit_rejections_total",
				Help: "Attempts skipped because a provider circuit was open",
			},
			[]string{"provider"},
		),
	}
}

// RecordAttempt records one completion attempt.
func (r *Recorder) RecordAttempt(provider, model, outcome string, latency time.Duration, tokens int) {
	if r == nil {
		return
	}
	r.aiAttempts.WithLabelValues(provider, model, outcome).Inc()
	r.aiLatency.WithLabelValues(provider, model).Observe(latency.Seconds())
	if tokens > 0 {
		r.aiTokens.WithLabelValues(provider, model).Add(float64(tokens))
	}
}

// RecordCircuitRejection records an attempt skipped by an open circuit.
func (r *Recorder) RecordCircuitRejection(provider string) {
	if r == nil {
		return
	}
	r.breakerRejects.WithLabelValues(provider).Inc()
}

// RecordAnalysis records a finished analysis request.
func (r *Recorder) RecordAnalysis(outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.analyses.WithLabelValues(outcome).Inc()
	if outcome == OutcomeAI || outcome == OutcomeFallback {
		r.analysisTime.Observe(duration.Seconds())
	}
}

// RecordStoreFailure records a failed cache read or write.
func (r *Recorder) RecordStoreFailure(operation string) {
	if r == nil {
		return
	}
	r.storeFailures.WithLabelValues(operation).Inc()
}

// RecordLatency records the duration of a pipeline stage.
func (r *Recorder) RecordLatency(op string, d time.Duration) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordHTTPRequest records a served request. route must be the
// templated path to keep label cardinality low.
func (r *Recorder) RecordHTTPRequest(route, method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
