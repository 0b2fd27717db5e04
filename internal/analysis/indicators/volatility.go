package indicators

import (
	"fmt"

	"crypto-analyst/internal/models"
)

// BollingerBands calculates Bollinger Bands with population deviation.
type BollingerBands struct {
	period    int
	stdDevMul float64
}

// NewBollingerBands creates a new Bollinger Bands indicator.
func NewBollingerBands(period int, stdDevMul float64) *BollingerBands {
	return &BollingerBands{
		period:    period,
		stdDevMul: stdDevMul,
	}
}

func (b *BollingerBands) Name() string {
	return fmt.Sprintf("BollingerBands_%d_%.1f", b.period, b.stdDevMul)
}

func (b *BollingerBands) Period() int {
	return b.period
}

func (b *BollingerBands) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if b.period <= 0 || b.stdDevMul <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < b.period {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	closes := closePrices(candles)

	middle := nanSeries(n)
	upper := nanSeries(n)
	lower := nanSeries(n)
	bandwidth := nanSeries(n)
	percentB := nanSeries(n)

	for i := b.period - 1; i < n; i++ {
		window := closes[i-b.period+1 : i+1]
		sma := mean(window)
		sd := stdDev(window)

		middle[i] = sma
		upper[i] = sma + b.stdDevMul*sd
		lower[i] = sma - b.stdDevMul*sd

		if sma != 0 {
			bandwidth[i] = (upper[i] - lower[i]) / sma
		}
		// %B is undefined when the bands collapse onto the middle.
		if width := upper[i] - lower[i]; width > 0 {
			percentB[i] = (closes[i] - lower[i]) / width
		}
	}

	return map[string][]float64{
		"middle":    middle,
		"upper":     upper,
		"lower":     lower,
		"bandwidth": bandwidth,
		"percent_b": percentB,
	}, nil
}
