package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordAttempt("openai", "gpt-4o-mini", "success", 2*time.Second, 850)
	r.RecordAttempt("openai", "gpt-4o-mini", "retryable", time.Second, 0)
	r.RecordAnalysis(OutcomeFallback, time.Second)
	r.RecordAnalysis(OutcomeCached, 0)
	r.RecordStoreFailure("put")
	r.RecordCircuitRejection("gemini")
	r.RecordHTTPRequest("/api/v1/analysis/:symbol", "GET", 200, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.aiAttempts.WithLabelValues("openai", "gpt-4o-mini", "success")))
	assert.Equal(t, 850.0, testutil.ToFloat64(r.aiTokens.WithLabelValues("openai", "gpt-4o-mini")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.analyses.WithLabelValues(OutcomeFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.storeFailures.WithLabelValues("put")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.breakerRejects.WithLabelValues("gemini")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordAttempt("x", "y", "success", time.Second, 1)
		r.RecordAnalysis(OutcomeAI, time.Second)
		r.RecordStoreFailure("get")
		r.RecordLatency("fetch", time.Second)
		r.RecordHTTPRequest("/", "GET", 500, time.Second)
		r.RecordCircuitRejection("x")
	})
}
