package analysis

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-analyst/internal/analysis/indicators"
	"crypto-analyst/internal/config"
	"crypto-analyst/internal/models"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func series(symbol string, closes []float64) models.CandleSeries {
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		hi, lo := open, c
		if c > open {
			hi, lo = c, open
		}
		candles[i] = models.Candle{
			OpenTime: epoch.Add(time.Duration(i) * 24 * time.Hour),
			Open:     open,
			High:     hi * 1.001,
			Low:      lo * 0.999,
			Close:    c,
			Volume:   1000 + float64(i%7)*50,
		}
	}
	return models.CandleSeries{Symbol: symbol, Interval: "1d", Candles: candles}
}

func indicatorSet(t *testing.T, s models.CandleSeries, price float64) models.IndicatorSet {
	t.Helper()
	set, err := indicators.NewCalculator(config.Default().Indicators).Calculate(context.Background(), s, price)
	require.NoError(t, err)
	return set
}

func newMerger() *Merger {
	return NewMerger(config.Default().Indicators.Weights)
}

func btcSet(t *testing.T) models.IndicatorSet {
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 90000 + float64(i)*500
	}
	return indicatorSet(t, series("BTCUSDT", closes), 97000)
}

func TestMergeFallbackRisingMarket(t *testing.T) {
	set := btcSet(t)
	res := newMerger().Merge(set, nil)

	assert.Equal(t, models.DirectionBullish, res.Trend.Direction)
	assert.InDelta(t, 60.0, res.Trend.Confidence, 1e-9)
	assert.True(t, res.IsFallback())
	assert.Equal(t, RuleBasedModel, res.DataSources.AnalysisModel)
	assert.Equal(t, models.SentimentExtremeGreed, res.MarketSentiment.Label)
	assert.InDelta(t, 100.0, res.MarketSentiment.Score, 1e-9)
	assert.InDelta(t, 0.5, res.QualityMetrics.DataCompleteness, 1e-9)
	assert.InDelta(t, 30.0, res.QualityMetrics.Confidence, 1e-9)

	require.Len(t, res.TechnicalAnalysis, len(models.IndicatorNames))
	for name, r := range set.Readings {
		e := res.TechnicalAnalysis[name]
		assert.Equal(t, r.Value, e.Value, name)
		assert.Equal(t, r.Signal, e.Signal, name)
		assert.Equal(t, r.Interpretation, e.Interpretation, name)
		assert.Equal(t, models.SourceCalculator, e.Source, name)
	}
	assert.Greater(t, res.TechnicalAnalysis[models.IndicatorRSI].Value.Float64, 60.0)
	assert.Equal(t, indicators.PositionAbove, res.TechnicalAnalysis[models.IndicatorMovingAverage].Position)
	assert.False(t, res.TechnicalAnalysis[models.IndicatorMACD].Value.Valid)

	assert.Contains(t, res.Summary, "BTCUSDT reads bullish")
	assert.Contains(t, res.RiskFactors[0], "rule-based")
	assert.Contains(t, res.RiskFactors[len(res.RiskFactors)-1], "macd")
}

func TestMergePrefersNarrative(t *testing.T) {
	set := btcSet(t)
	n := &models.Narrative{
		Trend:     models.Trend{Direction: models.DirectionBearish, Confidence: 70, Summary: "Exhaustion after the run."},
		Summary:   "Buyers look tired.",
		Sentiment: &models.MarketSentiment{Score: 35, Label: models.SentimentFear, Summary: "Caution."},
		TechnicalAnalysis: map[string]models.NarrativeEntry{
			models.IndicatorRSI:  {Signal: models.SignalBearish, Interpretation: "RSI at 100 is unsustainable."},
			models.IndicatorMACD: {Signal: models.SignalBullish, Interpretation: "Too early to call."},
			"stochastic":         {Signal: models.SignalBullish, Interpretation: "ignored"},
		},
		RiskFactors: []string{"Macro event risk"},
	}

	res := newMerger().Merge(set, n)

	assert.Equal(t, n.Trend, res.Trend)
	assert.Equal(t, *n.Sentiment, res.MarketSentiment)
	assert.Equal(t, "Buyers look tired.", res.Summary)
	assert.Equal(t, []string{"Macro event risk"}, res.RiskFactors)
	assert.False(t, res.IsFallback())
	assert.InDelta(t, 35.0, res.QualityMetrics.Confidence, 1e-9)

	rsi := res.TechnicalAnalysis[models.IndicatorRSI]
	assert.Equal(t, models.SignalBearish, rsi.Signal)
	assert.Equal(t, models.SourceAI, rsi.Source)
	assert.Equal(t, set.Readings[models.IndicatorRSI].Value, rsi.Value)

	macd := res.TechnicalAnalysis[models.IndicatorMACD]
	assert.Equal(t, models.SignalInsufficientData, macd.Signal)
	assert.Equal(t, "Too early to call.", macd.Interpretation)

	assert.Equal(t, models.SourceCalculator, res.TechnicalAnalysis[models.IndicatorWilliamsR].Source)
	assert.NotContains(t, res.TechnicalAnalysis, "stochastic")
}

func TestMergeDefaultedNarrativeFieldsUseVote(t *testing.T) {
	set := btcSet(t)
	n := &models.Narrative{
		Trend:             models.Trend{Direction: models.DirectionNeutral, Confidence: 50},
		TechnicalAnalysis: map[string]models.NarrativeEntry{},
		RiskFactors:       []string{},
		Defaults:          []string{"trend.direction", "trend.confidence", "summary", "marketSentiment"},
	}

	res := newMerger().Merge(set, n)
	assert.Equal(t, models.DirectionBullish, res.Trend.Direction)
	assert.InDelta(t, 60.0, res.Trend.Confidence, 1e-9)
	assert.Equal(t, models.SentimentExtremeGreed, res.MarketSentiment.Label)
	assert.Contains(t, res.Summary, "on indicators alone")
	assert.Empty(t, res.RiskFactors)
	assert.False(t, res.IsFallback())
}

func reading(s models.Signal) models.IndicatorReading {
	r := models.IndicatorReading{Signal: s}
	if s != models.SignalInsufficientData {
		r.Value = null.FloatFrom(1)
	}
	return r
}

func TestVote(t *testing.T) {
	bull, bear, flat, none := models.SignalBullish, models.SignalBearish, models.SignalNeutral, models.SignalInsufficientData
	tests := []struct {
		name    string
		signals map[string]models.Signal
		score   float64
		dir     models.Direction
	}{
		{"all bullish", map[string]models.Signal{"rsi": bull, "macd": bull, "movingAverage": bull, "bollingerBands": bull, "williamsR": bull, "volume": bull}, 1, models.DirectionBullish},
		{"all bearish", map[string]models.Signal{"rsi": bear, "macd": bear, "movingAverage": bear, "bollingerBands": bear, "williamsR": bear, "volume": bear}, -1, models.DirectionBearish},
		{"macd outweighs rsi", map[string]models.Signal{"rsi": bear, "macd": bull}, 0.1111, models.DirectionNeutral},
		{"insufficient skipped", map[string]models.Signal{"rsi": bull, "macd": none, "volume": flat}, 0.5714, models.DirectionBullish},
		{"single bearish vote", map[string]models.Signal{"movingAverage": bear, "rsi": flat, "volume": flat, "bollingerBands": flat, "williamsR": flat, "macd": flat}, -0.2, models.DirectionBearish},
		{"nothing to vote", map[string]models.Signal{"rsi": none, "macd": none}, 0, models.DirectionNeutral},
	}

	m := newMerger()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := models.IndicatorSet{Readings: map[string]models.IndicatorReading{}}
			for name, s := range tt.signals {
				set.Readings[name] = reading(s)
			}
			v := m.Vote(set)
			assert.InDelta(t, tt.score, v.Score, 1e-4)
			assert.Equal(t, tt.dir, v.Direction)
			assert.InDelta(t, abs(v.Score)*60, v.Confidence, 0.01)
		})
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func randomSeries(seed int64, n int) models.CandleSeries {
	rng := rand.New(rand.NewSource(seed))
	closes := make([]float64, n)
	price := 50 + rng.Float64()*50000
	for i := range closes {
		price *= 1 + (rng.Float64()-0.5)*0.06
		closes[i] = price
	}
	return series("PROP", closes)
}

func TestMergeNeverTakesNarrativeNumbers(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	calc := indicators.NewCalculator(config.Default().Indicators)
	m := newMerger()
	signals := gen.OneConstOf(models.SignalBullish, models.SignalBearish, models.SignalNeutral, models.Signal(""))

	properties.Property("technicalAnalysis values equal calculator values", prop.ForAll(
		func(seed int64, n int, fake float64, sig models.Signal) bool {
			set, err := calc.Calculate(context.Background(), randomSeries(seed, n), 0)
			if err != nil {
				return false
			}
			narrative := &models.Narrative{
				Trend:             models.Trend{Direction: models.DirectionBullish, Confidence: fake},
				TechnicalAnalysis: map[string]models.NarrativeEntry{},
			}
			for _, name := range models.IndicatorNames {
				narrative.TechnicalAnalysis[name] = models.NarrativeEntry{
					Signal:         sig,
					Interpretation: fmt.Sprintf("%s is really %.4f, value=%.2f", name, fake, fake*2),
				}
			}

			res := m.Merge(set, narrative)
			if len(res.TechnicalAnalysis) != len(set.Readings) {
				return false
			}
			for name, r := range set.Readings {
				e := res.TechnicalAnalysis[name]
				if e.Value != r.Value || !sameComponents(e.Components, r.Components) {
					return false
				}
				if e.Position != r.Position {
					return false
				}
			}
			return res.CurrentPrice == set.Price
		},
		gen.Int64Range(1, 1_000_000),
		gen.IntRange(2, 160),
		gen.Float64Range(-1e6, 1e6),
		signals,
	))

	properties.TestingRun(t)
}

func sameComponents(a, b map[string]null.Float) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
