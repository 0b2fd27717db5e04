package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// Direction is the overall trend call.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionBullish || d == DirectionBearish || d == DirectionNeutral
}

// Trend is the direction call with a confidence in [0,100].
type Trend struct {
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Summary    string    `json:"summary"`
}

// MarketSentiment is a 0-100 fear/greed style score.
type MarketSentiment struct {
	Score   float64 `json:"score"`
	Label   string  `json:"label"`
	Summary string  `json:"summary"`
}

// NarrativeEntry is the qualitative view of one indicator. It never
// carries numbers.
type NarrativeEntry struct {
	Signal         Signal `json:"signal"`
	Interpretation string `json:"interpretation"`
}

// Narrative is the schema-checked AI response. It lives only until merge.
type Narrative struct {
	Trend             Trend                     `json:"trend"`
	Summary           string                    `json:"summary"`
	Sentiment         *MarketSentiment          `json:"marketSentiment,omitempty"`
	TechnicalAnalysis map[string]NarrativeEntry `json:"technicalAnalysis"`
	RiskFactors       []string                  `json:"riskFactors"`
	// Defaults lists the fields that were filled in during normalization.
	Defaults []string `json:"-"`
}

// Entry sources.
const (
	SourceAI         = "ai"
	SourceCalculator = "calculator"
)

// ProviderFallback marks a result produced without any AI narrative.
const ProviderFallback = "fallback"

// AnalysisTypeTechnical is the default analysis type.
const AnalysisTypeTechnical = "technical"

// TechnicalEntry is one merged indicator in the persisted result.
type TechnicalEntry struct {
	Value          null.Float            `json:"value"`
	Components     map[string]null.Float `json:"components,omitempty"`
	Signal         Signal                `json:"signal"`
	Position       string                `json:"position,omitempty"`
	Interpretation string                `json:"interpretation"`
	Flags          []string              `json:"flags,omitempty"`
	Source         string                `json:"source"`
}

// QualityMetrics describes how the result was produced.
type QualityMetrics struct {
	ProcessingTimeMs   int64   `json:"processingTimeMs"`
	DataCompleteness   float64 `json:"dataCompleteness"`
	Confidence         float64 `json:"confidence"`
	TokensUsed         int     `json:"tokensUsed"`
	AIAttempts         int     `json:"aiAttempts"`
	ExtractionStrategy string  `json:"extractionStrategy,omitempty"`
}

// DataSources records where the inputs came from.
type DataSources struct {
	AnalysisModel  string `json:"analysisModel"`
	Provider       string `json:"provider"`
	MarketData     string `json:"marketData"`
	CandleInterval string `json:"candleInterval"`
	CandleCount    int    `json:"candleCount"`
}

// AnalysisResult is the persisted artifact, one per symbol, day and type.
type AnalysisResult struct {
	ID                    string                    `json:"id"`
	Symbol                string                    `json:"symbol"`
	AnalysisDate          string                    `json:"analysisDate"`
	AnalysisType          string                    `json:"analysisType"`
	CurrentPrice          float64                   `json:"currentPrice"`
	PriceChangePercent24h float64                   `json:"priceChangePercent24h"`
	Trend                 Trend                     `json:"trend"`
	TechnicalAnalysis     map[string]TechnicalEntry `json:"technicalAnalysis"`
	MarketSentiment       MarketSentiment           `json:"marketSentiment"`
	Summary               string                    `json:"summary"`
	RiskFactors           []string                  `json:"riskFactors"`
	QualityMetrics        QualityMetrics            `json:"qualityMetrics"`
	DataSources           DataSources               `json:"dataSources"`
	CreatedAt             time.Time                 `json:"createdAt"`
}

// IsFallback reports whether the result was produced without AI input.
func (r *AnalysisResult) IsFallback() bool {
	return r.DataSources.Provider == ProviderFallback
}

// Sentiment labels from most fearful to most greedy.
const (
	SentimentExtremeFear  = "extreme_fear"
	SentimentFear         = "fear"
	SentimentNeutral      = "neutral"
	SentimentGreed        = "greed"
	SentimentExtremeGreed = "extreme_greed"
)

// SentimentLabel buckets a 0-100 score.
func SentimentLabel(score float64) string {
	switch {
	case score < 20:
		return SentimentExtremeFear
	case score < 40:
		return SentimentFear
	case score < 60:
		return SentimentNeutral
	case score < 80:
		return SentimentGreed
	}
	return SentimentExtremeGreed
}
