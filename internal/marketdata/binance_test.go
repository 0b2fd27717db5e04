package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-analyst/internal/config"
	apperrors "crypto-analyst/internal/errors"
)

const klinesBody = `[
 [1700086400000,"91000.0","92000.0","90500.0","91500.5","12.5",1700172799999,"0",1,"0","0","0"],
 [1700000000000,"90000.0","91200.0","89900.0","91000.0","10.0",1700086399999,"0",1,"0","0","0"]
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *BinanceClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().Market
	cfg.BaseURL = srv.URL
	cfg.Timeout = 2 * time.Second
	cfg.RateLimit = 1000
	cfg.Burst = 100
	cfg.MaxRetries = 2

	c := NewBinanceClient(cfg, zerolog.Nop())
	c.retry.InitialDelay = time.Millisecond
	return c
}

func exchangeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
			return
		}
		switch r.URL.Path {
		case pathPrice:
			_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"97000.12000000"}`))
		case pathTicker:
			_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","priceChange":"1500.00","priceChangePercent":"1.571",
				"lastPrice":"97000.12","highPrice":"97500.00","lowPrice":"95000.00","volume":"20345.1","quoteVolume":"1973000000.5"}`))
		case pathKlines:
			_, _ = w.Write([]byte(klinesBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestBinanceClientFetchesSnapshot(t *testing.T) {
	c := newTestClient(t, exchangeHandler())

	snap, err := FetchSnapshot(context.Background(), c, "BTCUSDT", "1d", 100)
	require.NoError(t, err)

	assert.InDelta(t, 97000.12, snap.Quote.Price, 1e-9)
	assert.InDelta(t, 1.571, snap.Ticker.PriceChangePercent, 1e-9)
	assert.InDelta(t, 95000.0, snap.Ticker.Low, 1e-9)

	require.Equal(t, 2, snap.Series.Len())
	// Rows arrive out of order and are returned oldest first.
	assert.True(t, snap.Series.Candles[0].OpenTime.Before(snap.Series.Candles[1].OpenTime))
	assert.Equal(t, 91000.0, snap.Series.Candles[0].Close)
	last, ok := snap.Series.Last()
	require.True(t, ok)
	assert.Equal(t, 91500.5, last.Close)
	assert.Equal(t, time.UTC, last.OpenTime.Location())
}

func TestBinanceClientUnknownSymbol(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		exchangeHandler()(w, r)
	})

	_, err := c.GetCurrentPrice(context.Background(), "NOPEUSDT")
	require.Error(t, err)
	assert.True(t, apperrors.IsDataUnavailable(err))
	assert.ErrorIs(t, err, apperrors.ErrSymbolNotFound)
	assert.NotErrorIs(t, err, apperrors.ErrTransient)
	assert.Equal(t, int32(1), calls.Load(), "unknown symbol must not be retried")
}

func TestBinanceClientRetriesTransientFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		failFirst int32
		wantErr   error
		wantCalls int32
	}{
		{"recovers after 5xx", http.StatusBadGateway, 2, nil, 3},
		{"gives up after retries", http.StatusServiceUnavailable, 10, apperrors.ErrTransient, 3},
		{"rate limited", http.StatusTooManyRequests, 10, apperrors.ErrRateLimited, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) <= tt.failFirst {
					w.WriteHeader(tt.status)
					return
				}
				exchangeHandler()(w, r)
			})

			_, err := c.Get24hTicker(context.Background(), "BTCUSDT")
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, apperrors.IsDataUnavailable(err))
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestBinanceClientMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		call func(c *BinanceClient) error
	}{
		{"bad price", `{"symbol":"BTCUSDT","price":"abc"}`, func(c *BinanceClient) error {
			_, err := c.GetCurrentPrice(context.Background(), "BTCUSDT")
			return err
		}},
		{"short kline", `[[1700000000000,"1","2"]]`, func(c *BinanceClient) error {
			_, err := c.GetCandles(context.Background(), "BTCUSDT", "1d", 10)
			return err
		}},
		{"high below low", `[[1700000000000,"1","1","2","1","5"]]`, func(c *BinanceClient) error {
			_, err := c.GetCandles(context.Background(), "BTCUSDT", "1d", 10)
			return err
		}},
		{"not json", `<html>`, func(c *BinanceClient) error {
			_, err := c.Get24hTicker(context.Background(), "BTCUSDT")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			err := tt.call(c)
			require.Error(t, err)
			assert.True(t, apperrors.IsDataUnavailable(err))
			assert.ErrorIs(t, err, apperrors.ErrTransient)
		})
	}
}

func TestBinanceClientEmptyCandles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	_, err := c.GetCandles(context.Background(), "BTCUSDT", "1d", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientHistory)
}

func TestFetchSnapshotPropagatesFirstFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == pathKlines {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
			return
		}
		exchangeHandler()(w, r)
	})

	_, err := FetchSnapshot(context.Background(), c, "BTCUSDT", "1d", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSymbolNotFound)
}
