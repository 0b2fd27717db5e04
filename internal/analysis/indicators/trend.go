package indicators

import (
	"fmt"

	"crypto-analyst/internal/models"
)

// SMA calculates Simple Moving Average.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("SMA_%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

func (s *SMA) Calculate(candles []models.Candle) ([]float64, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < s.period {
		return nil, ErrInsufficientData
	}

	result := nanSeries(len(candles))
	closes := closePrices(candles)

	for i := s.period - 1; i < len(candles); i++ {
		result[i] = mean(closes[i-s.period+1 : i+1])
	}

	return result, nil
}

// CalculateEMA calculates EMA on raw values, seeded with the SMA of the
// first period values. Positions before the seed are NaN.
func CalculateEMA(values []float64, period int) []float64 {
	if len(values) < period || period <= 0 {
		return nil
	}

	result := nanSeries(len(values))
	multiplier := 2.0 / float64(period+1)

	result[period-1] = mean(values[:period])
	for i := period; i < len(values); i++ {
		result[i] = (values[i]-result[i-1])*multiplier + result[i-1]
	}

	return result
}

// MACD calculates Moving Average Convergence Divergence.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

// Period is the candle count required before the reading is trusted: one
// full slow window plus a full signal window.
func (m *MACD) Period() int {
	return m.slowPeriod + m.signalPeriod
}

func (m *MACD) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if m.fastPeriod <= 0 || m.slowPeriod <= 0 || m.signalPeriod <= 0 || m.fastPeriod >= m.slowPeriod {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < m.Period() {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	closes := closePrices(candles)
	fastEMA := CalculateEMA(closes, m.fastPeriod)
	slowEMA := CalculateEMA(closes, m.slowPeriod)

	macdLine := nanSeries(n)
	for i := m.slowPeriod - 1; i < n; i++ {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine := nanSeries(n)
	startIdx := m.slowPeriod - 1
	signalEMA := CalculateEMA(macdLine[startIdx:], m.signalPeriod)
	for i, v := range signalEMA {
		signalLine[startIdx+i] = v
	}

	histogram := nanSeries(n)
	for i := m.slowPeriod + m.signalPeriod - 2; i < n; i++ {
		histogram[i] = macdLine[i] - signalLine[i]
	}

	return map[string][]float64{
		"macd":      macdLine,
		"signal":    signalLine,
		"histogram": histogram,
	}, nil
}
