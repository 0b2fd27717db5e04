// Package models provides domain models for the analysis engine.
package models

import (
	"strings"
	"time"
)

// Candle represents OHLCV data for one interval.
type Candle struct {
	OpenTime time.Time `json:"openTime"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// CandleSeries is an ascending run of candles for one symbol and interval.
// It is not modified after it has been fetched.
type CandleSeries struct {
	Symbol   string   `json:"symbol"`
	Interval string   `json:"interval"`
	Candles  []Candle `json:"candles"`
}

// Len returns the number of candles.
func (s CandleSeries) Len() int {
	return len(s.Candles)
}

// Last returns the most recent candle.
func (s CandleSeries) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// PriceQuote is the latest traded price of a symbol.
type PriceQuote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Ticker24h holds rolling 24 hour statistics.
type Ticker24h struct {
	Symbol             string  `json:"symbol"`
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	LastPrice          float64 `json:"lastPrice"`
	High               float64 `json:"high"`
	Low                float64 `json:"low"`
	Volume             float64 `json:"volume"`
	QuoteVolume        float64 `json:"quoteVolume"`
}

// MarketSnapshot bundles everything fetched from the market data source
// for a single analysis run.
type MarketSnapshot struct {
	Quote  PriceQuote
	Ticker Ticker24h
	Series CandleSeries
}

// NormalizeSymbol upper-cases and trims a trading pair symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
