package indicators

import (
	"context"

	"crypto-analyst/internal/config"
	"crypto-analyst/internal/models"
)

// Calculator turns a candle series into an IndicatorSet. It holds no
// mutable state after construction and is safe for concurrent use.
type Calculator struct {
	cfg    config.IndicatorConfig
	engine *Engine

	rsi       *RSI
	macd      *MACD
	mas       []*SMA
	bollinger *BollingerBands
	williams  *WilliamsR
	volume    *VolumeTrend
}

// NewCalculator builds a calculator for the configured periods.
func NewCalculator(cfg config.IndicatorConfig) *Calculator {
	c := &Calculator{
		cfg:       cfg,
		engine:    NewEngine(4),
		rsi:       NewRSI(cfg.RSIPeriod),
		macd:      NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal),
		bollinger: NewBollingerBands(cfg.BollingerPeriod, cfg.BollingerK),
		williams:  NewWilliamsR(cfg.WilliamsPeriod),
		volume:    NewVolumeTrend(cfg.VolumeShort, cfg.VolumeLong),
	}
	for _, p := range cfg.MAPeriods {
		c.mas = append(c.mas, NewSMA(p))
	}

	c.engine.RegisterIndicator(c.rsi)
	c.engine.RegisterIndicator(c.williams)
	for _, ma := range c.mas {
		c.engine.RegisterIndicator(ma)
	}
	c.engine.RegisterMultiIndicator(c.macd)
	c.engine.RegisterMultiIndicator(c.bollinger)
	c.engine.RegisterMultiIndicator(c.volume)
	return c
}

// Calculate computes every reading. price is the live price used for
// position checks; a non-positive price falls back to the last close.
func (c *Calculator) Calculate(ctx context.Context, series models.CandleSeries, price float64) (models.IndicatorSet, error) {
	if price <= 0 {
		if lastCandle, ok := series.Last(); ok {
			price = lastCandle.Close
		}
	}

	res, err := c.engine.CalculateAll(ctx, series.Candles)
	if err != nil {
		return models.IndicatorSet{}, err
	}

	n := series.Len()
	set := models.IndicatorSet{
		Symbol:      series.Symbol,
		Price:       price,
		CandleCount: n,
		Readings:    make(map[string]models.IndicatorReading, len(models.IndicatorNames)),
	}

	set.Readings[models.IndicatorRSI] = c.rsiReading(res, n)
	set.Readings[models.IndicatorMACD] = c.macdReading(res, n, price)
	set.Readings[models.IndicatorMovingAverage] = c.movingAverageReading(res, n, price)
	set.Readings[models.IndicatorBollinger] = c.bollingerReading(res, n, price)
	set.Readings[models.IndicatorWilliamsR] = c.williamsReading(res, n)
	set.Readings[models.IndicatorVolume] = c.volumeReading(res, n)

	return set, nil
}

// MinWindow is the shortest history any configured indicator needs. A
// series below it cannot produce a single reading.
func (c *Calculator) MinWindow() int {
	need := c.MinCandles()
	for _, p := range []int{c.rsi.Period(), c.macd.Period(), c.bollinger.Period(), c.williams.Period(), c.volume.Period()} {
		if p < need {
			need = p
		}
	}
	for _, ma := range c.mas {
		if ma.Period() < need {
			need = ma.Period()
		}
	}
	return need
}

// MinCandles is the longest history any configured indicator needs.
func (c *Calculator) MinCandles() int {
	need := 0
	for _, p := range []int{c.rsi.Period(), c.macd.Period(), c.bollinger.Period(), c.williams.Period(), c.volume.Period()} {
		if p > need {
			need = p
		}
	}
	for _, ma := range c.mas {
		if ma.Period() > need {
			need = ma.Period()
		}
	}
	return need
}
