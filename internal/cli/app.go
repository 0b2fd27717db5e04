package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"crypto-analyst/internal/agents"
	"crypto-analyst/internal/config"
	"crypto-analyst/internal/marketdata"
	"crypto-analyst/internal/metrics"
	"crypto-analyst/internal/service"
	"crypto-analyst/internal/store"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder
	Store    store.AnalysisStore
	Chain    *agents.Chain
	Service  *service.Service
}

// init builds the analysis pipeline on first use. Commands that only read
// configuration never touch the store or the providers.
func (app *App) init(ctx context.Context) error {
	if app.Service != nil {
		return nil
	}
	cfg := app.Config

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.New(app.Registry)

	st, err := store.New(cfg.Cache, cfg.Credentials.RedisPass, app.Logger)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Cache.Backend, err)
	}
	app.Store = st
	app.Logger.Debug().Str("backend", cfg.Cache.Backend).Msg("Analysis store initialized")

	entries, errs := agents.BuildChain(ctx, cfg)
	for _, err := range errs {
		app.Logger.Warn().Err(err).Msg("Skipping provider")
	}
	if len(entries) == 0 {
		app.Logger.Warn().Msg("No AI provider credentials found, analyses will be rule-based")
	}
	app.Chain = agents.NewChain(entries, cfg.AI, app.Metrics, app.Logger)

	app.Service = service.New(service.Options{
		Config:  cfg,
		Gateway: marketdata.NewBinanceClient(cfg.Market, app.Logger),
		Chain:   app.Chain,
		Store:   st,
		Metrics: app.Metrics,
		Logger:  app.Logger,
	})
	return nil
}

// Close releases the store.
func (app *App) Close() error {
	if app.Store == nil {
		return nil
	}
	return app.Store.Close()
}
