package indicators

import (
	"fmt"

	"crypto-analyst/internal/models"
)

// VolumeTrend compares a short average volume with a longer lookback.
// The "ratio" series is short/long; "change" is the close-to-close price
// change over the short window in percent.
type VolumeTrend struct {
	short int
	long  int
}

// NewVolumeTrend creates a new volume trend indicator.
func NewVolumeTrend(short, long int) *VolumeTrend {
	return &VolumeTrend{short: short, long: long}
}

func (v *VolumeTrend) Name() string {
	return fmt.Sprintf("VolumeTrend_%d_%d", v.short, v.long)
}

func (v *VolumeTrend) Period() int {
	return v.long
}

func (v *VolumeTrend) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if v.short <= 0 || v.long <= 0 || v.short >= v.long {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < v.long {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	vols := volumes(candles)
	closes := closePrices(candles)

	shortAvg := nanSeries(n)
	longAvg := nanSeries(n)
	ratio := nanSeries(n)
	change := nanSeries(n)

	for i := v.long - 1; i < n; i++ {
		shortAvg[i] = mean(vols[i-v.short+1 : i+1])
		longAvg[i] = mean(vols[i-v.long+1 : i+1])
		if longAvg[i] > 0 {
			ratio[i] = shortAvg[i] / longAvg[i]
		}
		if base := closes[i-v.short]; base != 0 {
			change[i] = 100 * (closes[i] - base) / base
		}
	}

	return map[string][]float64{
		"short_avg": shortAvg,
		"long_avg":  longAvg,
		"ratio":     ratio,
		"change":    change,
	}, nil
}
