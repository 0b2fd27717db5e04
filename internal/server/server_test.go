package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-analyst/internal/config"
	apperrors "crypto-analyst/internal/errors"
	"crypto-analyst/internal/metrics"
	"crypto-analyst/internal/models"
	"crypto-analyst/internal/resilience"
	"crypto-analyst/internal/service"
)

type fakeAnalyzer struct {
	err         error
	invalidated []string
	breakers    []resilience.CircuitBreakerStats
}

func (f *fakeAnalyzer) PerformCurrencyAnalysis(ctx context.Context, symbol string) (*models.AnalysisResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.AnalysisResult{
		ID:           "id-1",
		Symbol:       strings.ToUpper(symbol),
		AnalysisDate: "2026-10-19",
		Trend:        models.Trend{Direction: models.DirectionBullish, Confidence: 60},
		DataSources:  models.DataSources{Provider: models.ProviderFallback},
	}, nil
}

func (f *fakeAnalyzer) Status(ctx context.Context, symbol string) (*service.Status, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.Status{Symbol: strings.ToUpper(symbol), Date: "2026-10-19", NeedsAnalysis: true}, nil
}

func (f *fakeAnalyzer) Invalidate(ctx context.Context, symbol string) error {
	f.invalidated = append(f.invalidated, symbol)
	return nil
}

func (f *fakeAnalyzer) Breakers() []resilience.CircuitBreakerStats {
	return f.breakers
}

func newTestServer(a Analyzer) (*httptest.Server, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	s := New(config.Default().Server, a, rec, reg, zerolog.Nop())
	return httptest.NewServer(s.Handler()), reg
}

func do(t *testing.T, method, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestGetAnalysis(t *testing.T) {
	a := &fakeAnalyzer{}
	ts, _ := newTestServer(a)
	defer ts.Close()

	resp, body := do(t, http.MethodGet, ts.URL+"/api/v1/analysis/btcusdt")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res models.AnalysisResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, "BTCUSDT", res.Symbol)
	assert.True(t, res.IsFallback())
	assert.Empty(t, a.invalidated)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/v1/analysis/btcusdt?force=true")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"btcusdt"}, a.invalidated)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid symbol", fmt.Errorf("%w: %q", apperrors.ErrInvalidSymbol, "x"), http.StatusBadRequest, "invalid_symbol"},
		{"unknown symbol", apperrors.NewDataError("price", "NOPEUSDT", "unknown", apperrors.ErrSymbolNotFound), http.StatusNotFound, "symbol_not_found"},
		{"short history", apperrors.NewDataError("klines", "NEWUSDT", "no candles", apperrors.ErrInsufficientHistory), http.StatusUnprocessableEntity, "insufficient_history"},
		{"exchange down", apperrors.NewDataError("ticker", "BTCUSDT", "status 503", apperrors.ErrTransient), http.StatusBadGateway, "market_data_unavailable"},
		{"other", fmt.Errorf("boom api_key=sk-abcdefghijklmnopqrstuvwxyz"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := newTestServer(&fakeAnalyzer{err: tt.err})
			defer ts.Close()

			resp, body := do(t, http.MethodGet, ts.URL+"/api/v1/analysis/BTCUSDT")
			assert.Equal(t, tt.status, resp.StatusCode)

			var er ErrorResponse
			require.NoError(t, json.Unmarshal(body, &er))
			assert.Equal(t, tt.code, er.Code)
			assert.NotContains(t, er.Error, "abcdefghijklmnopqrstuvwxyz")
		})
	}
}

func TestStatusAndDelete(t *testing.T) {
	a := &fakeAnalyzer{}
	ts, _ := newTestServer(a)
	defer ts.Close()

	resp, body := do(t, http.MethodGet, ts.URL+"/api/v1/analysis/ethusdt/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st service.Status
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "ETHUSDT", st.Symbol)
	assert.True(t, st.NeedsAnalysis)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/v1/analysis/ethusdt")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"ethusdt"}, a.invalidated)
}

func TestHealthAndMetrics(t *testing.T) {
	a := &fakeAnalyzer{breakers: []resilience.CircuitBreakerStats{
		{Name: "gemini", State: resilience.CircuitOpen, LastStateChange: time.Now()},
		{Name: "openai", State: resilience.CircuitClosed},
	}}
	ts, _ := newTestServer(a)
	defer ts.Close()

	resp, body := do(t, http.MethodGet, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var h HealthResponse
	require.NoError(t, json.Unmarshal(body, &h))
	assert.Equal(t, "degraded", h.Status)
	assert.Len(t, h.Breakers, 2)

	do(t, http.MethodGet, ts.URL+"/api/v1/analysis/BTCUSDT")
	resp, body = do(t, http.MethodGet, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "analyst_http_requests_total")
	assert.Contains(t, string(body), `route="/api/v1/analysis/:symbol"`)
}
