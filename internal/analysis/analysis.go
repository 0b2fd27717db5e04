// Package analysis merges calculator readings with the AI narrative into
// the persisted result. Numbers only ever come from the IndicatorSet.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"crypto-analyst/internal/analysis/indicators"
	"crypto-analyst/internal/config"
	"crypto-analyst/internal/models"
)

// RuleBasedModel names the model of a result produced without AI input.
const RuleBasedModel = "rule-based"

// fallbackConfidenceScale lowers confidence when the trend comes from the
// vote rather than a narrative.
const fallbackConfidenceScale = 0.6

// Vote is the weighted indicator vote.
type Vote struct {
	Score        float64          `json:"score"` // in [-1,1]
	Direction    models.Direction `json:"direction"`
	Confidence   float64          `json:"confidence"`
	Participants []string         `json:"participants"`
}

// Merger combines an IndicatorSet with an optional narrative.
type Merger struct {
	weights   map[string]float64
	threshold float64
}

// NewMerger creates a merger using the configured vote weights.
func NewMerger(cfg config.VoteConfig) *Merger {
	return &Merger{
		weights: map[string]float64{
			models.IndicatorRSI:           cfg.RSI,
			models.IndicatorMACD:          cfg.MACD,
			models.IndicatorMovingAverage: cfg.MovingAverage,
			models.IndicatorBollinger:     cfg.Bollinger,
			models.IndicatorWilliamsR:     cfg.WilliamsR,
			models.IndicatorVolume:        cfg.Volume,
		},
		threshold: cfg.Threshold,
	}
}

// Vote scores the set: bullish is +1, bearish -1 and neutral 0, weighted and
// normalized over the indicators that took part. Insufficient readings are
// skipped. With no participants the vote is neutral with zero confidence.
func (m *Merger) Vote(set models.IndicatorSet) Vote {
	var total, weight float64
	v := Vote{Direction: models.DirectionNeutral, Participants: []string{}}

	for _, name := range models.IndicatorNames {
		r, ok := set.Get(name)
		if !ok {
			continue
		}
		dir, counts := r.Signal.Vote()
		w := m.weights[name]
		if !counts || w <= 0 {
			continue
		}
		total += dir * w
		weight += w
		v.Participants = append(v.Participants, name)
	}
	if weight == 0 {
		return v
	}

	v.Score = round(total/weight, 4)
	switch {
	case v.Score > m.threshold:
		v.Direction = models.DirectionBullish
	case v.Score < -m.threshold:
		v.Direction = models.DirectionBearish
	}
	v.Confidence = round(math.Abs(v.Score)*100*fallbackConfidenceScale, 2)
	return v
}

// Merge builds the result body. narrative may be nil. The caller fills in
// identity, timing and data source fields other than the provider.
func (m *Merger) Merge(set models.IndicatorSet, narrative *models.Narrative) *models.AnalysisResult {
	vote := m.Vote(set)
	res := &models.AnalysisResult{
		Symbol:            set.Symbol,
		CurrentPrice:      set.Price,
		TechnicalAnalysis: make(map[string]models.TechnicalEntry, len(set.Readings)),
		RiskFactors:       []string{},
	}

	for name, r := range set.Readings {
		res.TechnicalAnalysis[name] = mergeEntry(r, narrativeEntry(narrative, name))
	}

	res.Trend = voteTrend(vote)
	res.MarketSentiment = voteSentiment(vote)
	res.Summary = fallbackSummary(set, vote)

	if narrative == nil {
		res.RiskFactors = fallbackRisks(set)
		res.DataSources.Provider = models.ProviderFallback
		res.DataSources.AnalysisModel = RuleBasedModel
	} else {
		if !hasDefault(narrative, "trend.direction") {
			res.Trend = narrative.Trend
			if hasDefault(narrative, "trend.confidence") {
				res.Trend.Confidence = vote.Confidence
			}
			if res.Trend.Summary == "" {
				res.Trend.Summary = voteTrend(vote).Summary
			}
		}
		if narrative.Sentiment != nil {
			res.MarketSentiment = *narrative.Sentiment
		}
		if narrative.Summary != "" {
			res.Summary = narrative.Summary
		}
		res.RiskFactors = append(res.RiskFactors, narrative.RiskFactors...)
	}

	completeness := set.Completeness()
	res.QualityMetrics.DataCompleteness = round(completeness, 4)
	res.QualityMetrics.Confidence = round(res.Trend.Confidence*completeness, 2)
	return res
}

// mergeEntry copies the numeric fields verbatim. Signal and interpretation
// come from the narrative when it has them. An undefined reading keeps its
// insufficient_data signal whatever the narrative says.
func mergeEntry(r models.IndicatorReading, ne models.NarrativeEntry) models.TechnicalEntry {
	e := models.TechnicalEntry{
		Value:          r.Value,
		Components:     r.Components,
		Signal:         r.Signal,
		Position:       r.Position,
		Interpretation: r.Interpretation,
		Flags:          r.Flags,
		Source:         models.SourceCalculator,
	}
	if ne.Signal.Valid() && ne.Signal != models.SignalInsufficientData && r.Signal != models.SignalInsufficientData {
		e.Signal = ne.Signal
		e.Source = models.SourceAI
	}
	if ne.Interpretation != "" {
		e.Interpretation = ne.Interpretation
		e.Source = models.SourceAI
	}
	return e
}

func narrativeEntry(n *models.Narrative, name string) models.NarrativeEntry {
	if n == nil {
		return models.NarrativeEntry{}
	}
	return n.TechnicalAnalysis[name]
}

func hasDefault(n *models.Narrative, field string) bool {
	for _, d := range n.Defaults {
		if d == field {
			return true
		}
	}
	return false
}

func voteTrend(v Vote) models.Trend {
	summary := "No indicator had enough history to vote."
	if len(v.Participants) > 0 {
		summary = fmt.Sprintf("Weighted vote of %d indicators (%s) scores %+.2f.",
			len(v.Participants), strings.Join(v.Participants, ", "), v.Score)
	}
	return models.Trend{Direction: v.Direction, Confidence: v.Confidence, Summary: summary}
}

func voteSentiment(v Vote) models.MarketSentiment {
	score := round((v.Score+1)*50, 2)
	return models.MarketSentiment{
		Score:   score,
		Label:   models.SentimentLabel(score),
		Summary: "Derived from the indicator vote.",
	}
}

func fallbackSummary(set models.IndicatorSet, v Vote) string {
	var bull, bear []string
	for _, name := range models.IndicatorNames {
		r, ok := set.Get(name)
		if !ok {
			continue
		}
		switch r.Signal {
		case models.SignalBullish:
			bull = append(bull, name)
		case models.SignalBearish:
			bear = append(bear, name)
		}
	}
	s := fmt.Sprintf("%s reads %s on indicators alone.", set.Symbol, v.Direction)
	if len(bull) > 0 {
		s += " Bullish: " + strings.Join(bull, ", ") + "."
	}
	if len(bear) > 0 {
		s += " Bearish: " + strings.Join(bear, ", ") + "."
	}
	return s
}

// fallbackRisks lists what the readings themselves warn about.
func fallbackRisks(set models.IndicatorSet) []string {
	risks := []string{"No AI narrative was available; this analysis is rule-based."}

	var missing []string
	for _, name := range models.IndicatorNames {
		r, ok := set.Get(name)
		if !ok {
			continue
		}
		if r.HasFlag(models.FlagInsufficientData) {
			missing = append(missing, name)
		}
		switch {
		case r.Position == indicators.PositionOverbought:
			risks = append(risks, fmt.Sprintf("%s is overbought; a pullback is possible.", name))
		case r.Position == indicators.PositionOversold:
			risks = append(risks, fmt.Sprintf("%s is oversold; selling may be exhausted or accelerating.", name))
		}
		if r.HasFlag(models.FlagSqueeze) {
			risks = append(risks, "Bollinger Bands are squeezed; expect a volatility expansion.")
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		risks = append(risks, "Not enough history for: "+strings.Join(missing, ", ")+".")
	}
	return risks
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
