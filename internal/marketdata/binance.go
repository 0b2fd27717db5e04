package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"crypto-analyst/internal/config"
	apperrors "crypto-analyst/internal/errors"
	"crypto-analyst/internal/logging"
	"crypto-analyst/internal/models"
	"crypto-analyst/pkg/utils"
)

const (
	pathPrice  = "/api/v3/ticker/price"
	pathTicker = "/api/v3/ticker/24hr"
	pathKlines = "/api/v3/klines"

	// Binance error code for an unknown trading pair.
	codeInvalidSymbol = -1121
)

// apiError is the error body returned by the exchange.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// BinanceClient implements Gateway against the Binance spot REST API.
type BinanceClient struct {
	client  *resty.Client
	limiter *rate.Limiter
	retry   utils.RetryConfig
	logger  zerolog.Logger
}

// NewBinanceClient creates a client for the configured base URL.
func NewBinanceClient(cfg config.MarketConfig, logger zerolog.Logger) *BinanceClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	retry.Retryable = func(err error) bool {
		return apperrors.Is(err, apperrors.ErrTransient)
	}

	return &BinanceClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		retry:   retry,
		logger:  logging.WithComponent(logger, "marketdata"),
	}
}

// GetCurrentPrice returns the latest traded price.
func (c *BinanceClient) GetCurrentPrice(ctx context.Context, symbol string) (*models.PriceQuote, error) {
	var body struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := c.get(ctx, "price", symbol, pathPrice, map[string]string{"symbol": symbol}, &body); err != nil {
		return nil, err
	}

	price, err := parseDecimal(body.Price)
	if err != nil || price <= 0 {
		return nil, malformed("price", symbol, fmt.Errorf("price %q", body.Price))
	}
	return &models.PriceQuote{Symbol: symbol, Price: price, Timestamp: time.Now().UTC()}, nil
}

// Get24hTicker returns rolling 24 hour statistics.
func (c *BinanceClient) Get24hTicker(ctx context.Context, symbol string) (*models.Ticker24h, error) {
	var body struct {
		Symbol             string `json:"symbol"`
		PriceChange        string `json:"priceChange"`
		PriceChangePercent string `json:"priceChangePercent"`
		LastPrice          string `json:"lastPrice"`
		HighPrice          string `json:"highPrice"`
		LowPrice           string `json:"lowPrice"`
		Volume             string `json:"volume"`
		QuoteVolume        string `json:"quoteVolume"`
	}
	if err := c.get(ctx, "ticker", symbol, pathTicker, map[string]string{"symbol": symbol}, &body); err != nil {
		return nil, err
	}

	fields := []string{body.PriceChange, body.PriceChangePercent, body.LastPrice, body.HighPrice, body.LowPrice, body.Volume, body.QuoteVolume}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseDecimal(f)
		if err != nil {
			return nil, malformed("ticker", symbol, err)
		}
		values[i] = v
	}

	return &models.Ticker24h{
		Symbol:             symbol,
		PriceChange:        values[0],
		PriceChangePercent: values[1],
		LastPrice:          values[2],
		High:               values[3],
		Low:                values[4],
		Volume:             values[5],
		QuoteVolume:        values[6],
	}, nil
}

// GetCandles returns up to limit candles, oldest first.
func (c *BinanceClient) GetCandles(ctx context.Context, symbol, interval string, limit int) (models.CandleSeries, error) {
	series := models.CandleSeries{Symbol: symbol, Interval: interval}

	var rows [][]json.RawMessage
	params := map[string]string{
		"symbol":   symbol,
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	}
	if err := c.get(ctx, "candles", symbol, pathKlines, params, &rows); err != nil {
		return series, err
	}
	if len(rows) == 0 {
		return series, apperrors.NewDataError("candles", symbol, "no candles returned", apperrors.ErrInsufficientHistory)
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			return series, malformed("candles", symbol, fmt.Errorf("row %d: %w", i, err))
		}
		candles = append(candles, candle)
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})

	series.Candles = candles
	return series, nil
}

// get performs a throttled GET with retries on transient failures and
// decodes a 200 body into out.
func (c *BinanceClient) get(ctx context.Context, dataType, symbol, path string, params map[string]string, out interface{}) error {
	_, err := utils.RetryWithResult(ctx, c.retry, func() (struct{}, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return struct{}{}, apperrors.NewDataError(dataType, symbol, "rate limiter", apperrors.Join(apperrors.ErrTransient, err))
		}

		start := time.Now()
		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(path)
		logging.LogAPICall(c.logger, http.MethodGet, path, time.Since(start), err)
		if err != nil {
			return struct{}{}, apperrors.NewDataError(dataType, symbol, "request failed", apperrors.Join(apperrors.ErrTransient, err))
		}
		if err := classifyStatus(dataType, symbol, resp.StatusCode(), resp.Body()); err != nil {
			return struct{}{}, err
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return struct{}{}, malformed(dataType, symbol, err)
		}
		return struct{}{}, nil
	})
	return err
}

// classifyStatus maps an HTTP status to nil, symbol-not-found or transient.
func classifyStatus(dataType, symbol string, status int, body []byte) error {
	if status == http.StatusOK {
		return nil
	}

	var ae apiError
	_ = json.Unmarshal(body, &ae)
	msg := fmt.Sprintf("status %d", status)
	if ae.Msg != "" {
		msg = fmt.Sprintf("status %d: %s (code %d)", status, ae.Msg, ae.Code)
	}

	switch {
	case ae.Code == codeInvalidSymbol, status == http.StatusNotFound:
		return apperrors.NewDataError(dataType, symbol, msg, apperrors.ErrSymbolNotFound)
	case status == http.StatusTooManyRequests, status == http.StatusTeapot:
		return apperrors.NewDataError(dataType, symbol, msg, apperrors.Join(apperrors.ErrTransient, apperrors.ErrRateLimited))
	case status >= 500, status == http.StatusRequestTimeout:
		return apperrors.NewDataError(dataType, symbol, msg, apperrors.ErrTransient)
	}
	// Any other 4xx is a bad request for this symbol; retrying will not help.
	return apperrors.NewDataError(dataType, symbol, msg, apperrors.ErrSymbolNotFound)
}

func parseKline(row []json.RawMessage) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return models.Candle{}, fmt.Errorf("open time: %w", err)
	}

	var ohlcv [5]float64
	for i := range ohlcv {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v, err := parseDecimal(s)
		if err != nil {
			return models.Candle{}, err
		}
		ohlcv[i] = v
	}

	c := models.Candle{
		OpenTime: time.UnixMilli(openTime).UTC(),
		Open:     ohlcv[0],
		High:     ohlcv[1],
		Low:      ohlcv[2],
		Close:    ohlcv[3],
		Volume:   ohlcv[4],
	}
	if c.High < c.Low || c.Close <= 0 || c.Volume < 0 {
		return models.Candle{}, fmt.Errorf("inconsistent candle at %d", openTime)
	}
	return c, nil
}

func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	v := d.InexactFloat64()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

func malformed(dataType, symbol string, err error) error {
	return apperrors.NewDataError(dataType, symbol, "malformed response", apperrors.Join(apperrors.ErrTransient, err))
}
