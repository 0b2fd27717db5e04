package narrative

import (
	"math"
	"strconv"
	"strings"

	"crypto-analyst/internal/models"
)

// DefaultConfidence is used when the response carries no usable confidence.
const DefaultConfidence = 50.0

var directionSynonyms = map[string]models.Direction{
	"bullish": models.DirectionBullish, "bull": models.DirectionBullish, "up": models.DirectionBullish,
	"uptrend": models.DirectionBullish, "upward": models.DirectionBullish, "buy": models.DirectionBullish,
	"strong_buy": models.DirectionBullish, "long": models.DirectionBullish, "positive": models.DirectionBullish,
	"rising": models.DirectionBullish, "moderately_bullish": models.DirectionBullish,

	"bearish": models.DirectionBearish, "bear": models.DirectionBearish, "down": models.DirectionBearish,
	"downtrend": models.DirectionBearish, "downward": models.DirectionBearish, "sell": models.DirectionBearish,
	"strong_sell": models.DirectionBearish, "short": models.DirectionBearish, "negative": models.DirectionBearish,
	"falling": models.DirectionBearish, "moderately_bearish": models.DirectionBearish,

	"neutral": models.DirectionNeutral, "sideways": models.DirectionNeutral, "hold": models.DirectionNeutral,
	"flat": models.DirectionNeutral, "range": models.DirectionNeutral, "ranging": models.DirectionNeutral,
	"consolidation": models.DirectionNeutral, "mixed": models.DirectionNeutral,
}

var signalSynonyms = map[string]models.Signal{
	"oversold":   models.SignalBullish,
	"overbought": models.SignalBearish,
}

var indicatorAliases = map[string]string{
	"rsi": models.IndicatorRSI, "relativestrengthindex": models.IndicatorRSI,

	"macd": models.IndicatorMACD,

	"movingaverage": models.IndicatorMovingAverage, "movingaverages": models.IndicatorMovingAverage,
	"ma": models.IndicatorMovingAverage, "sma": models.IndicatorMovingAverage, "ema": models.IndicatorMovingAverage,

	"bollinger": models.IndicatorBollinger, "bollingerbands": models.IndicatorBollinger,
	"bollingerband": models.IndicatorBollinger, "bb": models.IndicatorBollinger, "bbands": models.IndicatorBollinger,

	"williamsr": models.IndicatorWilliamsR, "williams": models.IndicatorWilliamsR,
	"williamspercentr": models.IndicatorWilliamsR, "willr": models.IndicatorWilliamsR, "wr": models.IndicatorWilliamsR,

	"volume": models.IndicatorVolume, "volumetrend": models.IndicatorVolume, "vol": models.IndicatorVolume,
}

var sentimentAliases = map[string]string{
	"extreme_fear":      models.SentimentExtremeFear,
	"extremely_fearful": models.SentimentExtremeFear,
	"fear":              models.SentimentFear,
	"fearful":           models.SentimentFear,
	"bearish":           models.SentimentFear,
	"neutral":           models.SentimentNeutral,
	"greed":             models.SentimentGreed,
	"greedy":            models.SentimentGreed,
	"bullish":           models.SentimentGreed,
	"extreme_greed":     models.SentimentExtremeGreed,
	"extremely_greedy":  models.SentimentExtremeGreed,
}

// Normalize maps a decoded object onto the narrative schema. Every field
// gets a value; the ones that had to be invented are listed in Defaults.
// Numbers offered for indicators are dropped.
func Normalize(obj map[string]any) *models.Narrative {
	n := &models.Narrative{
		TechnicalAnalysis: map[string]models.NarrativeEntry{},
		RiskFactors:       []string{},
	}

	trend, _ := obj["trend"].(map[string]any)
	dir, ok := NormalizeDirection(stringField(trend, "direction"))
	if !ok {
		n.Defaults = append(n.Defaults, "trend.direction")
	}
	n.Trend.Direction = dir

	conf, ok := parseScore(trend["confidence"])
	if !ok {
		conf = DefaultConfidence
		n.Defaults = append(n.Defaults, "trend.confidence")
	}
	n.Trend.Confidence = conf
	n.Trend.Summary = stringField(trend, "summary")

	n.Summary = stringField(obj, "summary")
	if n.Summary == "" {
		n.Defaults = append(n.Defaults, "summary")
	}

	n.Sentiment = normalizeSentiment(obj["marketSentiment"])
	if n.Sentiment == nil {
		n.Defaults = append(n.Defaults, "marketSentiment")
	}

	if ta, ok := obj["technicalAnalysis"].(map[string]any); ok {
		for k, raw := range ta {
			name, ok := CanonicalIndicator(k)
			if !ok {
				continue
			}
			entry := normalizeEntry(raw)
			if entry.Signal == "" && entry.Interpretation == "" {
				continue
			}
			n.TechnicalAnalysis[name] = entry
		}
	}

	switch rf := obj["riskFactors"].(type) {
	case []any:
		for _, v := range rf {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				n.RiskFactors = append(n.RiskFactors, strings.TrimSpace(s))
			}
		}
	case string:
		if strings.TrimSpace(rf) != "" {
			n.RiskFactors = append(n.RiskFactors, strings.TrimSpace(rf))
		}
	}

	return n
}

// NormalizeDirection maps free text onto a Direction. Unknown text is
// neutral and ok is false.
func NormalizeDirection(s string) (models.Direction, bool) {
	if d, ok := directionSynonyms[key(s)]; ok {
		return d, true
	}
	return models.DirectionNeutral, false
}

// NormalizeSignal maps free text onto a Signal. Unknown text yields "".
func NormalizeSignal(s string) models.Signal {
	k := key(s)
	if sig, ok := signalSynonyms[k]; ok {
		return sig
	}
	if d, ok := directionSynonyms[k]; ok {
		return models.Signal(d)
	}
	return ""
}

// CanonicalIndicator resolves indicator key aliases.
func CanonicalIndicator(k string) (string, bool) {
	var sb strings.Builder
	for _, r := range strings.ToLower(k) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	name, ok := indicatorAliases[strings.TrimRight(sb.String(), "0123456789")]
	return name, ok
}

func normalizeEntry(raw any) models.NarrativeEntry {
	switch v := raw.(type) {
	case string:
		return models.NarrativeEntry{Interpretation: strings.TrimSpace(v)}
	case map[string]any:
		return models.NarrativeEntry{
			Signal:         NormalizeSignal(stringField(v, "signal")),
			Interpretation: stringField(v, "interpretation"),
		}
	}
	return models.NarrativeEntry{}
}

func normalizeSentiment(raw any) *models.MarketSentiment {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	score, hasScore := parseScore(m["score"])
	label, hasLabel := sentimentAliases[key(stringField(m, "label"))]
	if !hasScore && !hasLabel {
		return nil
	}
	if !hasScore {
		score = labelMidpoint(label)
	}
	if !hasLabel {
		label = models.SentimentLabel(score)
	}
	return &models.MarketSentiment{
		Score:   score,
		Label:   label,
		Summary: stringField(m, "summary"),
	}
}

func labelMidpoint(label string) float64 {
	switch label {
	case models.SentimentExtremeFear:
		return 10
	case models.SentimentFear:
		return 30
	case models.SentimentGreed:
		return 70
	case models.SentimentExtremeGreed:
		return 90
	}
	return 50
}

// parseScore accepts numbers, numeric strings and percentages and clamps
// to [0,100]. A non-integer in [0,1] is read as a fraction.
func parseScore(v any) (float64, bool) {
	var f float64
	percent := false
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		s := strings.TrimSpace(x)
		if strings.HasSuffix(s, "%") {
			percent = true
			s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// A bare number in (0,1) is a fraction; "0.5%" already is a percentage.
	if !percent && f > 0 && f < 1 {
		f *= 100
	}
	return math.Max(0, math.Min(100, f)), true
}

func stringField(m map[string]any, k string) string {
	if m == nil {
		return ""
	}
	s, _ := m[k].(string)
	return strings.TrimSpace(s)
}

func key(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
