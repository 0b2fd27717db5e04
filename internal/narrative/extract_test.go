package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "crypto-analyst/internal/errors"
	"crypto-analyst/internal/models"
)

const narrativeJSON = `{
  "trend": {"direction": "bullish", "confidence": 72, "summary": "Higher highs {for now}."},
  "summary": "Momentum favours buyers.",
  "marketSentiment": {"score": 66, "label": "greed", "summary": "Risk appetite is back."},
  "technicalAnalysis": {
    "rsi": {"signal": "bullish", "interpretation": "Momentum is strong."},
    "macd": {"signal": "neutral", "interpretation": "Histogram is flat."}
  },
  "riskFactors": ["Overextended after a sharp run", "Thin weekend liquidity"]
}`

func TestWrappersYieldSameObject(t *testing.T) {
	wrapped := map[string]string{
		"labeled_fence":   "Here is my analysis:\n```json\n" + narrativeJSON + "\n```\nLet me know if you need more.",
		"any_fence":       "Analysis follows.\n```\n" + narrativeJSON + "\n```",
		"balanced_braces": "After weighing the readings {carefully}, my view is " + narrativeJSON + " and that concludes it.",
	}

	want, err := Extract(narrativeJSON)
	require.NoError(t, err)

	for strategy, text := range wrapped {
		t.Run(strategy, func(t *testing.T) {
			got, err := Extract(text)
			require.NoError(t, err)
			assert.Equal(t, strategy, got.Strategy)
			assert.Equal(t, want.Object, got.Object)

			n, name, err := Parse(text)
			require.NoError(t, err)
			assert.Equal(t, strategy, name)
			assert.Equal(t, models.DirectionBullish, n.Trend.Direction)
			assert.Equal(t, 72.0, n.Trend.Confidence)
		})
	}
}

func TestStrategiesIndependently(t *testing.T) {
	assert.Len(t, LabeledFence.Find("```JSON\n{}\n``` and ```json {\"a\":1}```"), 2)
	assert.Empty(t, LabeledFence.Find("```yaml\na: 1\n```"))
	assert.Equal(t, []string{"a: 1\n"}, AnyFence.Find("```yaml\na: 1\n```"))

	// Braces inside strings do not end the object; the larger span wins.
	got := BalancedBraces.Find(`x {"a": 1} y {"b": "}{", "c": {"d": 2}} z`)
	require.Len(t, got, 2)
	assert.Equal(t, `{"b": "}{", "c": {"d": 2}}`, got[0])

	assert.Nil(t, TrendAnchor.Find(`{"no": "anchor"}`))
	assert.Equal(t, []string{`{"trend": {"direction": "up"}}`}, TrendAnchor.Find(`noise "trend": {"direction": "up"}} tail`))

	names := make([]string, len(Strategies))
	for i, s := range Strategies {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"labeled_fence", "any_fence", "balanced_braces", "trend_anchor"}, names)
}

func TestTrendAnchorRecoversTruncatedResponse(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"cut inside string", `Sure! {"trend": {"direction": "bearish", "confidence": 64}, "summary": "Sellers are in contr`},
		{"cut after key", `{"trend": {"direction": "bearish", "confidence": 64}, "summary":`},
		{"cut inside array", `{"trend": {"direction": "bearish", "confidence": 64}, "riskFactors": ["Macro data", "Liquid`},
		{"cut inside trend", `{"trend": {"direction": "bearish", "confidence": 64, "sum`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := Extract(tt.text)
			require.NoError(t, err)
			assert.Equal(t, "trend_anchor", ext.Strategy)
			n := Normalize(ext.Object)
			assert.Equal(t, models.DirectionBearish, n.Trend.Direction)
			assert.Equal(t, 64.0, n.Trend.Confidence)
		})
	}
}

func TestSanitationPasses(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		passes []string
	}{
		{"trailing commas", "{\"trend\": {\"direction\": \"bullish\", \"confidence\": 70,}, \"riskFactors\": [\"a\",],}", []string{"trailing_commas"}},
		{"raw newline in string", "{\"trend\": {\"direction\": \"bullish\", \"summary\": \"line one\nline two\"}}", []string{"control_chars"}},
		{"smart quotes", `{“trend”: {“direction”: “bullish”}}`, []string{"smart_quotes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := Extract(tt.text)
			require.NoError(t, err)
			for _, p := range tt.passes {
				assert.Contains(t, ext.Passes, p)
			}
			dir, _ := NormalizeDirection(ext.Object["trend"].(map[string]any)["direction"].(string))
			assert.Equal(t, models.DirectionBullish, dir)
		})
	}
}

func TestExtractNoNarrative(t *testing.T) {
	for _, text := range []string{
		"",
		"I cannot help with that.",
		`{"summary": "no trend key at all"}`,
		`{"trend": "bullish"}`,
		"```json\nnot json\n```",
	} {
		_, err := Extract(text)
		assert.ErrorIs(t, err, apperrors.ErrNoNarrative, text)
		assert.ErrorIs(t, Validate(text), apperrors.ErrNoNarrative)
	}
}
