package indicators

import (
	"errors"
	"math"

	"crypto-analyst/internal/models"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = errors.New("insufficient data for calculation")
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.New("invalid period")
)

// nan marks a position in a series where the indicator is undefined.
var nan = math.NaN()

// nanSeries returns a series of n undefined values.
func nanSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = nan
	}
	return s
}

// last returns the final element of a series, NaN when empty.
func last(values []float64) float64 {
	if len(values) == 0 {
		return nan
	}
	return values[len(values)-1]
}

// finite reports whether v is a usable number.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// sum calculates the sum of a slice of float64.
func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// mean calculates the arithmetic mean of a slice of float64.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// stdDev calculates the population standard deviation.
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// closePrices extracts close prices from candles.
func closePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

// highPrices extracts high prices from candles.
func highPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.High
	}
	return prices
}

// lowPrices extracts low prices from candles.
func lowPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Low
	}
	return prices
}

// volumes extracts volumes from candles.
func volumes(candles []models.Candle) []float64 {
	vols := make([]float64, len(candles))
	for i, c := range candles {
		vols[i] = c.Volume
	}
	return vols
}

// highest returns the highest value in a slice.
func highest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	h := values[0]
	for _, v := range values[1:] {
		if v > h {
			h = v
		}
	}
	return h
}

// lowest returns the lowest value in a slice.
func lowest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	l := values[0]
	for _, v := range values[1:] {
		if v < l {
			l = v
		}
	}
	return l
}

// relativeEqual compares a and b with a tolerance scaled to b.
func relativeEqual(a, b, eps float64) bool {
	scale := math.Max(math.Abs(b), 1e-12)
	return math.Abs(a-b) <= eps*scale
}
