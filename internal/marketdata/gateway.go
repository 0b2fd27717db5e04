// Package marketdata fetches prices, 24h statistics and candles from the
// exchange REST API.
package marketdata

import (
	"context"

	"golang.org/x/sync/errgroup"

	"crypto-analyst/internal/models"
)

// Gateway is the market data source consumed by the analysis pipeline.
// Errors are *errors.DataError wrapping ErrSymbolNotFound or ErrTransient.
type Gateway interface {
	GetCurrentPrice(ctx context.Context, symbol string) (*models.PriceQuote, error)
	Get24hTicker(ctx context.Context, symbol string) (*models.Ticker24h, error)
	GetCandles(ctx context.Context, symbol, interval string, limit int) (models.CandleSeries, error)
}

// FetchSnapshot loads price, ticker and candles concurrently. The first
// failure cancels the other requests.
func FetchSnapshot(ctx context.Context, gw Gateway, symbol, interval string, limit int) (*models.MarketSnapshot, error) {
	var snap models.MarketSnapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		q, err := gw.GetCurrentPrice(gctx, symbol)
		if err != nil {
			return err
		}
		snap.Quote = *q
		return nil
	})
	g.Go(func() error {
		t, err := gw.Get24hTicker(gctx, symbol)
		if err != nil {
			return err
		}
		snap.Ticker = *t
		return nil
	})
	g.Go(func() error {
		s, err := gw.GetCandles(gctx, symbol, interval, limit)
		if err != nil {
			return err
		}
		snap.Series = s
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}
