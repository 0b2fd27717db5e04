// Package prompt renders market data and indicator readings into the
// system and user messages sent to a completion provider.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"crypto-analyst/internal/models"
	"crypto-analyst/pkg/utils"
)

// SystemPrompt fixes the role and the exact response shape. The schema has
// no numeric indicator fields.
const SystemPrompt = `You are a cryptocurrency technical analyst.
You receive indicator readings that were already calculated. Do not recalculate them and do not invent new numbers.
Interpret the readings and respond with a single JSON object and nothing else, using exactly this structure:

{
  "trend": {
    "direction": "bullish" | "bearish" | "neutral",
    "confidence": <integer 0-100>,
    "summary": "<one sentence>"
  },
  "summary": "<two or three sentences on the overall picture>",
  "marketSentiment": {
    "score": <integer 0-100, 0 is extreme fear, 100 is extreme greed>,
    "label": "extreme_fear" | "fear" | "neutral" | "greed" | "extreme_greed",
    "summary": "<one sentence>"
  },
  "technicalAnalysis": {
    "rsi": {"signal": "bullish" | "bearish" | "neutral", "interpretation": "<one sentence>"},
    "macd": {"signal": "...", "interpretation": "..."},
    "movingAverage": {"signal": "...", "interpretation": "..."},
    "bollingerBands": {"signal": "...", "interpretation": "..."},
    "williamsR": {"signal": "...", "interpretation": "..."},
    "volume": {"signal": "...", "interpretation": "..."}
  },
  "riskFactors": ["<short risk>", "..."]
}

Rules:
- Readings shown as n/a could not be calculated. Say so instead of guessing.
- Keep every interpretation under 40 words.
- Do not wrap the JSON in commentary.`

// Input is everything the user message is rendered from.
type Input struct {
	Symbol     string
	Interval   string
	Price      float64
	Ticker     models.Ticker24h
	Indicators models.IndicatorSet
}

// Prompt is a rendered request.
type Prompt struct {
	System string
	User   string
}

// Build renders in. Identical input always yields identical output.
func Build(in Input) Prompt {
	return Prompt{System: SystemPrompt, User: buildUser(in)}
}

func buildUser(in Input) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Symbol: %s\n", in.Symbol))
	sb.WriteString(fmt.Sprintf("Current Price: %s\n", utils.FormatPrice(in.Price)))
	sb.WriteString(fmt.Sprintf("24h Change: %s (%s)\n", utils.FormatPrice(in.Ticker.PriceChange), utils.FormatPercent(in.Ticker.PriceChangePercent)))
	sb.WriteString(fmt.Sprintf("24h Range: %s - %s\n", utils.FormatPrice(in.Ticker.Low), utils.FormatPrice(in.Ticker.High)))
	sb.WriteString(fmt.Sprintf("24h Volume: %s (quote %s)\n", utils.FormatCompact(in.Ticker.Volume), utils.FormatCompact(in.Ticker.QuoteVolume)))
	if in.Interval != "" {
		sb.WriteString(fmt.Sprintf("Candles: %d x %s\n", in.Indicators.CandleCount, in.Interval))
	}
	sb.WriteString("\n")

	sb.WriteString("Indicator Readings:\n")
	for _, name := range models.IndicatorNames {
		r, ok := in.Indicators.Get(name)
		if !ok {
			continue
		}
		writeReading(&sb, name, r)
	}

	sb.WriteString("\nRespond with the JSON object only.")
	return sb.String()
}

func writeReading(sb *strings.Builder, name string, r models.IndicatorReading) {
	sb.WriteString(fmt.Sprintf("  - %s: %s", name, utils.FormatNullable(r.Value, 2)))
	if r.Signal == models.SignalInsufficientData {
		sb.WriteString(" (not enough history)\n")
		return
	}
	sb.WriteString(fmt.Sprintf(" [signal %s", r.Signal))
	if r.Position != "" {
		sb.WriteString(fmt.Sprintf(", position %s", r.Position))
	}
	sb.WriteString("]\n")

	if len(r.Components) > 0 {
		keys := make([]string, 0, len(r.Components))
		for k := range r.Components {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%s", k, utils.FormatNullable(r.Components[k], 4))
		}
		sb.WriteString(fmt.Sprintf("      %s\n", strings.Join(parts, ", ")))
	}
	if len(r.Flags) > 0 {
		sb.WriteString(fmt.Sprintf("      flags: %s\n", strings.Join(r.Flags, ", ")))
	}
}
