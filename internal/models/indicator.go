package models

import (
	"slices"

	"github.com/guregu/null/v6"
)

// Signal is the categorical reading of an indicator.
type Signal string

const (
	SignalBullish          Signal = "bullish"
	SignalBearish          Signal = "bearish"
	SignalNeutral          Signal = "neutral"
	SignalInsufficientData Signal = "insufficient_data"
)

// Valid reports whether s is one of the known signals.
func (s Signal) Valid() bool {
	switch s {
	case SignalBullish, SignalBearish, SignalNeutral, SignalInsufficientData:
		return true
	}
	return false
}

// Vote returns the directional weight of the signal and whether it takes
// part in a vote at all.
func (s Signal) Vote() (float64, bool) {
	switch s {
	case SignalBullish:
		return 1, true
	case SignalBearish:
		return -1, true
	case SignalNeutral:
		return 0, true
	}
	return 0, false
}

// Canonical indicator names used as keys throughout the pipeline.
const (
	IndicatorRSI           = "rsi"
	IndicatorMACD          = "macd"
	IndicatorMovingAverage = "movingAverage"
	IndicatorBollinger     = "bollingerBands"
	IndicatorWilliamsR     = "williamsR"
	IndicatorVolume        = "volume"
)

// IndicatorNames lists the indicators in presentation order.
var IndicatorNames = []string{
	IndicatorRSI,
	IndicatorMACD,
	IndicatorMovingAverage,
	IndicatorBollinger,
	IndicatorWilliamsR,
	IndicatorVolume,
}

// Reading flags.
const (
	FlagInsufficientData = "insufficient_data"
	FlagNoPriceMovement  = "no_price_movement"
	FlagFlatRange        = "flat_range"
	FlagExactMidpoint    = "exact_midpoint"
	FlagBoundaryValue    = "boundary_value"
	FlagSqueeze          = "squeeze"
	FlagZeroVolume       = "zero_volume"
)

// IndicatorReading is the calculator output for one indicator. Value is
// either a finite number inside the indicator's domain or null.
type IndicatorReading struct {
	Value          null.Float            `json:"value"`
	Components     map[string]null.Float `json:"components,omitempty"`
	Signal         Signal                `json:"signal"`
	Position       string                `json:"position,omitempty"`
	Interpretation string                `json:"interpretation"`
	Flags          []string              `json:"flags,omitempty"`
}

// Defined reports whether the reading carries a computed value.
func (r IndicatorReading) Defined() bool {
	return r.Value.Valid
}

// HasFlag reports whether flag was raised on the reading.
func (r IndicatorReading) HasFlag(flag string) bool {
	return slices.Contains(r.Flags, flag)
}

// IndicatorSet holds all readings for one analysis run.
type IndicatorSet struct {
	Symbol      string                      `json:"symbol"`
	Price       float64                     `json:"price"`
	CandleCount int                         `json:"candleCount"`
	Readings    map[string]IndicatorReading `json:"readings"`
}

// Get returns the reading stored under name.
func (s IndicatorSet) Get(name string) (IndicatorReading, bool) {
	r, ok := s.Readings[name]
	return r, ok
}

// Completeness is the share of readings that carry a value.
func (s IndicatorSet) Completeness() float64 {
	if len(s.Readings) == 0 {
		return 0
	}
	var defined int
	for _, r := range s.Readings {
		if r.Defined() {
			defined++
		}
	}
	return float64(defined) / float64(len(s.Readings))
}
