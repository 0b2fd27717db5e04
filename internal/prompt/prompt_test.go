package prompt

import (
	"strings"
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"

	"crypto-analyst/internal/models"
)

func sampleInput() Input {
	return Input{
		Symbol:   "BTCUSDT",
		Interval: "1d",
		Price:    97000,
		Ticker: models.Ticker24h{
			Symbol:             "BTCUSDT",
			PriceChange:        2365.85,
			PriceChangePercent: 2.5,
			High:               97500,
			Low:                94000,
			Volume:             21000,
			QuoteVolume:        2.03e9,
		},
		Indicators: models.IndicatorSet{
			Symbol:      "BTCUSDT",
			Price:       97000,
			CandleCount: 15,
			Readings: map[string]models.IndicatorReading{
				models.IndicatorRSI: {
					Value:    null.FloatFrom(100),
					Signal:   models.SignalBullish,
					Position: "overbought",
					Flags:    []string{models.FlagBoundaryValue},
				},
				models.IndicatorMovingAverage: {
					Value:  null.FloatFrom(95500),
					Signal: models.SignalBullish,
					Components: map[string]null.Float{
						"ma99": {},
						"ma7":  null.FloatFrom(95500),
						"ma25": {},
					},
					Position: "above",
				},
				models.IndicatorMACD: {
					Signal: models.SignalInsufficientData,
					Flags:  []string{models.FlagInsufficientData},
				},
			},
		},
	}
}

func TestBuildRendersReadings(t *testing.T) {
	p := Build(sampleInput())

	assert.Equal(t, SystemPrompt, p.System)
	assert.Contains(t, p.User, "Symbol: BTCUSDT")
	assert.Contains(t, p.User, "Current Price: 97000.00")
	assert.Contains(t, p.User, "+2.50%")
	assert.Contains(t, p.User, "rsi: 100.00 [signal bullish, position overbought]")
	assert.Contains(t, p.User, "flags: boundary_value")
	assert.Contains(t, p.User, "macd: n/a (not enough history)")
	assert.Contains(t, p.User, "ma25=n/a, ma7=95500.0000, ma99=n/a")
	assert.NotContains(t, p.User, "williamsR")

	// Presentation order follows the canonical indicator list.
	assert.Less(t, strings.Index(p.User, "- rsi"), strings.Index(p.User, "- macd"))
	assert.Less(t, strings.Index(p.User, "- macd"), strings.Index(p.User, "- movingAverage"))
}

func TestBuildIsDeterministic(t *testing.T) {
	first := Build(sampleInput())
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Build(sampleInput()))
	}
}

func TestSystemPromptNamesEveryIndicator(t *testing.T) {
	for _, name := range models.IndicatorNames {
		assert.Contains(t, SystemPrompt, `"`+name+`"`)
	}
}
