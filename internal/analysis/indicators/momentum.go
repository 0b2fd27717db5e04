package indicators

import (
	"fmt"

	"crypto-analyst/internal/models"
)

// RSI calculates the Relative Strength Index with Wilder smoothing.
// Positions without enough history, or where neither gains nor losses
// occurred, are NaN rather than a guessed midpoint.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

// Period is the number of candles needed for the first value.
func (r *RSI) Period() int {
	return r.period + 1
}

func (r *RSI) Calculate(candles []models.Candle) ([]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < r.Period() {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	result := nanSeries(n)
	closes := closePrices(candles)

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	// Seed with a simple average, then smooth.
	avgGain := mean(gains[1 : r.period+1])
	avgLoss := mean(losses[1 : r.period+1])
	result[r.period] = rsiValue(avgGain, avgLoss)

	p := float64(r.period)
	for i := r.period + 1; i < n; i++ {
		avgGain = (avgGain*(p-1) + gains[i]) / p
		avgLoss = (avgLoss*(p-1) + losses[i]) / p
		result[i] = rsiValue(avgGain, avgLoss)
	}

	return result, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return nan
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	return clamp(100-(100/(1+rs)), 0, 100)
}

// WilliamsR calculates Williams %R. A window whose highest high equals its
// lowest low has no defined value.
type WilliamsR struct {
	period int
}

// NewWilliamsR creates a new Williams %R indicator.
func NewWilliamsR(period int) *WilliamsR {
	return &WilliamsR{period: period}
}

func (w *WilliamsR) Name() string {
	return fmt.Sprintf("WilliamsR_%d", w.period)
}

func (w *WilliamsR) Period() int {
	return w.period
}

func (w *WilliamsR) Calculate(candles []models.Candle) ([]float64, error) {
	if w.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < w.period {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	result := nanSeries(n)
	highs := highPrices(candles)
	lows := lowPrices(candles)
	closes := closePrices(candles)

	for i := w.period - 1; i < n; i++ {
		highestHigh := highest(highs[i-w.period+1 : i+1])
		lowestLow := lowest(lows[i-w.period+1 : i+1])

		if highestHigh == lowestLow {
			continue
		}
		wr := -100 * (highestHigh - closes[i]) / (highestHigh - lowestLow)
		// A close outside the reported high/low range is clamped.
		result[i] = clamp(wr, -100, 0)
	}

	return result, nil
}
