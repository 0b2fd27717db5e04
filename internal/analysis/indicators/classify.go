package indicators

import (
	"fmt"
	"math"

	"github.com/guregu/null/v6"

	"crypto-analyst/internal/models"
)

// Positions reported on readings.
const (
	PositionOverbought = "overbought"
	PositionOversold   = "oversold"
	PositionNeutral    = "neutral"
	PositionAbove      = "above"
	PositionBelow      = "below"
	PositionAt         = "at"
	PositionAboveUpper = "above_upper"
	PositionUpper      = "upper"
	PositionMiddle     = "middle"
	PositionLower      = "lower"
	PositionBelowLower = "below_lower"
	PositionRising     = "rising"
	PositionFalling    = "falling"
	PositionFlat       = "flat"
)

// Bollinger %B zone edges.
const (
	upperZone = 0.8
	lowerZone = 0.2
)

func nullable(v float64) null.Float {
	if finite(v) {
		return null.FloatFrom(v)
	}
	return null.Float{}
}

func insufficient(label string, need, have int) models.IndicatorReading {
	return models.IndicatorReading{
		Signal:         models.SignalInsufficientData,
		Interpretation: fmt.Sprintf("%s needs at least %d candles, only %d available.", label, need, have),
		Flags:          []string{models.FlagInsufficientData},
	}
}

// rsiReading: at or above 50+band is bullish momentum, at or below 50-band
// bearish. Overbought and oversold are reported as a position only.
func (c *Calculator) rsiReading(res *Results, n int) models.IndicatorReading {
	if res.Err(c.rsi.Name()) != nil {
		return insufficient("RSI", c.rsi.Period(), n)
	}
	v := last(res.Single[c.rsi.Name()])
	if !finite(v) {
		return models.IndicatorReading{
			Signal:         models.SignalNeutral,
			Position:       PositionNeutral,
			Interpretation: fmt.Sprintf("No price movement over the last %d candles; RSI is undefined.", c.cfg.RSIPeriod),
			Flags:          []string{models.FlagNoPriceMovement},
		}
	}

	r := models.IndicatorReading{Value: null.FloatFrom(v), Flags: midpointFlags(v, 50, 0, 100)}
	switch {
	case v >= 50+c.cfg.RSINeutralBand:
		r.Signal = models.SignalBullish
	case v <= 50-c.cfg.RSINeutralBand:
		r.Signal = models.SignalBearish
	default:
		r.Signal = models.SignalNeutral
	}
	switch {
	case v >= c.cfg.RSIOverbought:
		r.Position = PositionOverbought
		r.Interpretation = fmt.Sprintf("RSI at %.1f is overbought; momentum is strong but stretched.", v)
	case v <= c.cfg.RSIOversold:
		r.Position = PositionOversold
		r.Interpretation = fmt.Sprintf("RSI at %.1f is oversold; selling pressure may be exhausted.", v)
	default:
		r.Position = PositionNeutral
		r.Interpretation = fmt.Sprintf("RSI at %.1f shows %s momentum.", v, momentumWord(r.Signal))
	}
	return r
}

func (c *Calculator) macdReading(res *Results, n int, price float64) models.IndicatorReading {
	if res.Err(c.macd.Name()) != nil {
		return insufficient("MACD", c.macd.Period(), n)
	}
	out := res.Multi[c.macd.Name()]
	line, sig, hist := last(out["macd"]), last(out["signal"]), last(out["histogram"])
	if !finite(hist) {
		return insufficient("MACD", c.macd.Period(), n)
	}

	r := models.IndicatorReading{
		Value: nullable(line),
		Components: map[string]null.Float{
			"macd":      nullable(line),
			"signal":    nullable(sig),
			"histogram": nullable(hist),
		},
	}
	if hist == 0 {
		r.Flags = append(r.Flags, models.FlagExactMidpoint)
	}

	eps := c.cfg.PriceEpsilon * math.Abs(price)
	switch {
	case hist > eps:
		r.Signal = models.SignalBullish
		r.Position = PositionAbove
		r.Interpretation = fmt.Sprintf("MACD is above its signal line (histogram %+.4g); upside momentum is building.", hist)
	case hist < -eps:
		r.Signal = models.SignalBearish
		r.Position = PositionBelow
		r.Interpretation = fmt.Sprintf("MACD is below its signal line (histogram %+.4g); downside momentum dominates.", hist)
	default:
		r.Signal = models.SignalNeutral
		r.Position = PositionAt
		r.Interpretation = "MACD is on its signal line; momentum is undecided."
	}
	return r
}

func (c *Calculator) movingAverageReading(res *Results, n int, price float64) models.IndicatorReading {
	if len(c.mas) == 0 {
		return insufficient("Moving average", 0, n)
	}
	primary := c.mas[0]
	if res.Err(primary.Name()) != nil {
		return insufficient(fmt.Sprintf("MA%d", primary.Period()), primary.Period(), n)
	}

	ma := last(res.Single[primary.Name()])
	r := models.IndicatorReading{
		Value:      nullable(ma),
		Components: make(map[string]null.Float, len(c.mas)),
	}
	for _, s := range c.mas {
		key := fmt.Sprintf("ma%d", s.Period())
		if res.Err(s.Name()) != nil {
			r.Components[key] = null.Float{}
			continue
		}
		r.Components[key] = nullable(last(res.Single[s.Name()]))
	}

	label := fmt.Sprintf("MA%d", primary.Period())
	switch {
	case relativeEqual(price, ma, c.cfg.PriceEpsilon):
		r.Signal = models.SignalNeutral
		r.Position = PositionAt
		r.Interpretation = fmt.Sprintf("Price is sitting on the %s.", label)
	case price > ma:
		r.Signal = models.SignalBullish
		r.Position = PositionAbove
		r.Interpretation = fmt.Sprintf("Price is %.2f%% above the %s, supporting the short-term uptrend.", pctDiff(price, ma), label)
	default:
		r.Signal = models.SignalBearish
		r.Position = PositionBelow
		r.Interpretation = fmt.Sprintf("Price is %.2f%% below the %s, keeping the short-term bias down.", -pctDiff(price, ma), label)
	}
	return r
}

func (c *Calculator) bollingerReading(res *Results, n int, price float64) models.IndicatorReading {
	if res.Err(c.bollinger.Name()) != nil {
		return insufficient("Bollinger Bands", c.bollinger.Period(), n)
	}
	out := res.Multi[c.bollinger.Name()]
	upper, middle, lower, bw := last(out["upper"]), last(out["middle"]), last(out["lower"]), last(out["bandwidth"])

	percentB := nan
	if width := upper - lower; width > 0 {
		percentB = (price - lower) / width
	}

	r := models.IndicatorReading{
		Value: nullable(middle),
		Components: map[string]null.Float{
			"upper":     nullable(upper),
			"middle":    nullable(middle),
			"lower":     nullable(lower),
			"bandwidth": nullable(bw),
			"percentB":  nullable(percentB),
		},
	}
	squeeze := finite(bw) && bw < c.cfg.SqueezeThreshold
	if squeeze {
		r.Flags = append(r.Flags, models.FlagSqueeze)
	}

	switch {
	case !finite(percentB):
		r.Position = PositionMiddle
	case price > upper:
		r.Position = PositionAboveUpper
	case price < lower:
		r.Position = PositionBelowLower
	case percentB >= upperZone:
		r.Position = PositionUpper
	case percentB <= lowerZone:
		r.Position = PositionLower
	default:
		r.Position = PositionMiddle
	}

	switch r.Position {
	case PositionAboveUpper, PositionUpper:
		r.Signal = models.SignalBullish
		r.Interpretation = "Price is pressing the upper band; buyers are in control but the move is extended."
	case PositionBelowLower, PositionLower:
		r.Signal = models.SignalBearish
		r.Interpretation = "Price is near the lower band; sellers are in control."
	default:
		r.Signal = models.SignalNeutral
		r.Interpretation = "Price is trading around the middle band."
	}
	if squeeze {
		r.Interpretation += " Bands are squeezed, so a volatility expansion is likely."
	}
	return r
}

// williamsReading: above -50+band is bullish, below -50-band bearish.
func (c *Calculator) williamsReading(res *Results, n int) models.IndicatorReading {
	if res.Err(c.williams.Name()) != nil {
		return insufficient("Williams %R", c.williams.Period(), n)
	}
	v := last(res.Single[c.williams.Name()])
	if !finite(v) {
		return models.IndicatorReading{
			Signal:         models.SignalNeutral,
			Position:       PositionNeutral,
			Interpretation: fmt.Sprintf("High and low were equal over the last %d candles; Williams %%R is undefined.", c.cfg.WilliamsPeriod),
			Flags:          []string{models.FlagFlatRange},
		}
	}

	r := models.IndicatorReading{Value: null.FloatFrom(v), Flags: midpointFlags(v, -50, -100, 0)}
	switch {
	case v > -50+c.cfg.WilliamsBand:
		r.Signal = models.SignalBullish
	case v < -50-c.cfg.WilliamsBand:
		r.Signal = models.SignalBearish
	default:
		r.Signal = models.SignalNeutral
	}
	switch {
	case v >= -20:
		r.Position = PositionOverbought
		r.Interpretation = fmt.Sprintf("Williams %%R at %.1f: closing near the top of its range.", v)
	case v <= -80:
		r.Position = PositionOversold
		r.Interpretation = fmt.Sprintf("Williams %%R at %.1f: closing near the bottom of its range.", v)
	default:
		r.Position = PositionNeutral
		r.Interpretation = fmt.Sprintf("Williams %%R at %.1f: mid-range close with %s tilt.", v, momentumWord(r.Signal))
	}
	return r
}

// volumeReading: rising volume confirms the direction of the recent price
// change; flat or falling volume is neutral.
func (c *Calculator) volumeReading(res *Results, n int) models.IndicatorReading {
	if res.Err(c.volume.Name()) != nil {
		return insufficient("Volume trend", c.volume.Period(), n)
	}
	out := res.Multi[c.volume.Name()]
	ratio, change := last(out["ratio"]), last(out["change"])

	r := models.IndicatorReading{
		Value: nullable(ratio),
		Components: map[string]null.Float{
			"shortAverage": nullable(last(out["short_avg"])),
			"longAverage":  nullable(last(out["long_avg"])),
			"priceChange":  nullable(change),
		},
	}
	if !finite(ratio) {
		r.Signal = models.SignalNeutral
		r.Position = PositionFlat
		r.Flags = []string{models.FlagZeroVolume}
		r.Interpretation = "No traded volume in the lookback window."
		return r
	}

	tol := c.cfg.VolumeTolerance
	switch {
	case ratio > 1+tol:
		r.Position = PositionRising
	case ratio < 1-tol:
		r.Position = PositionFalling
	default:
		r.Position = PositionFlat
	}

	r.Signal = models.SignalNeutral
	switch {
	case r.Position == PositionRising && change > 0:
		r.Signal = models.SignalBullish
		r.Interpretation = fmt.Sprintf("Volume is %.0f%% above average and confirms the advance.", (ratio-1)*100)
	case r.Position == PositionRising && change < 0:
		r.Signal = models.SignalBearish
		r.Interpretation = fmt.Sprintf("Volume is %.0f%% above average on a decline; distribution is likely.", (ratio-1)*100)
	case r.Position == PositionRising:
		r.Interpretation = "Volume is rising while price is unchanged."
	case r.Position == PositionFalling:
		r.Interpretation = fmt.Sprintf("Volume is %.0f%% below average; conviction is fading.", (1-ratio)*100)
	default:
		r.Interpretation = "Volume is in line with its recent average."
	}
	return r
}

// midpointFlags marks values that are exactly the oscillator midpoint or
// one of its bounds. They are legitimate results but worth a second look.
func midpointFlags(v, mid, lo, hi float64) []string {
	switch v {
	case mid:
		return []string{models.FlagExactMidpoint}
	case lo, hi:
		return []string{models.FlagBoundaryValue}
	}
	return nil
}

func momentumWord(s models.Signal) string {
	switch s {
	case models.SignalBullish:
		return "bullish"
	case models.SignalBearish:
		return "bearish"
	}
	return "neutral"
}

func pctDiff(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return 100 * (a - b) / b
}
