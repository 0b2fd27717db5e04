// Package service runs the daily analysis pipeline behind the store gate:
// market data, indicators, the provider chain, narrative extraction and
// merge.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"crypto-analyst/internal/agents"
	"crypto-analyst/internal/analysis"
	"crypto-analyst/internal/analysis/indicators"
	"crypto-analyst/internal/config"
	apperrors "crypto-analyst/internal/errors"
	"crypto-analyst/internal/logging"
	"crypto-analyst/internal/marketdata"
	"crypto-analyst/internal/metrics"
	"crypto-analyst/internal/models"
	"crypto-analyst/internal/narrative"
	"crypto-analyst/internal/prompt"
	"crypto-analyst/internal/resilience"
	"crypto-analyst/internal/store"
	"crypto-analyst/pkg/utils"
)

// Options are the collaborators of a Service. Chain may be nil, in which
// case every analysis is rule-based.
type Options struct {
	Config  *config.Config
	Gateway marketdata.Gateway
	Chain   *agents.Chain
	Store   store.AnalysisStore
	Metrics *metrics.Recorder
	Logger  zerolog.Logger
	Clock   utils.Clock
}

// Service is safe for concurrent use.
type Service struct {
	cfg      *config.Config
	gateway  marketdata.Gateway
	chain    *agents.Chain
	store    store.AnalysisStore
	metrics  *metrics.Recorder
	logger   zerolog.Logger
	clock    utils.Clock
	loc      *time.Location
	calc     *indicators.Calculator
	merger   *analysis.Merger
	validate *validator.Validate
	flights  singleflight.Group
}

// Status describes today's analysis of one symbol.
type Status struct {
	Symbol        string    `json:"symbol"`
	Date          string    `json:"analysisDate"`
	AnalysisType  string    `json:"analysisType"`
	NeedsAnalysis bool      `json:"needsAnalysis"`
	NextRefresh   time.Time `json:"nextRefresh"`
}

// BatchItem is the outcome for one symbol of AnalyzeBatch.
type BatchItem struct {
	Symbol string
	Result *models.AnalysisResult
	Err    error
}

type symbolInput struct {
	Symbol string `validate:"required,alphanum,uppercase,min=5,max=20"`
}

// New creates a service.
func New(opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = utils.SystemClock
	}
	return &Service{
		cfg:      opts.Config,
		gateway:  opts.Gateway,
		chain:    opts.Chain,
		store:    opts.Store,
		metrics:  opts.Metrics,
		logger:   logging.WithComponent(opts.Logger, "analysis"),
		clock:    clock,
		loc:      utils.LoadLocation(opts.Config.Cache.Timezone),
		calc:     indicators.NewCalculator(opts.Config.Indicators),
		merger:   analysis.NewMerger(opts.Config.Indicators.Weights),
		validate: validator.New(),
	}
}

// Key returns today's store key for symbol.
func (s *Service) Key(symbol string) store.Key {
	return store.Key{
		Symbol: models.NormalizeSymbol(symbol),
		Date:   utils.CalendarDate(s.clock(), s.loc),
		Type:   s.cfg.Cache.AnalysisType,
	}
}

// NeedsAnalysis reports whether no analysis is stored for today. A store
// read failure counts as a miss.
func (s *Service) NeedsAnalysis(ctx context.Context, symbol string) (bool, error) {
	sym, err := s.checkSymbol(symbol)
	if err != nil {
		return false, err
	}
	_, err = s.store.Get(ctx, s.Key(sym))
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, apperrors.ErrDataNotFound):
		s.logger.Warn().Err(err).Str("symbol", sym).Msg("Store read failed, treating as miss")
	}
	return true, nil
}

// Status reports today's state for symbol.
func (s *Service) Status(ctx context.Context, symbol string) (*Status, error) {
	needs, err := s.NeedsAnalysis(ctx, symbol)
	if err != nil {
		return nil, err
	}
	key := s.Key(symbol)
	return &Status{
		Symbol:        key.Symbol,
		Date:          key.Date,
		AnalysisType:  key.Type,
		NeedsAnalysis: needs,
		NextRefresh:   utils.NextMidnight(s.clock(), s.loc).UTC(),
	}, nil
}

// Today lists the analyses stored for the current date.
func (s *Service) Today(ctx context.Context) ([]store.Key, error) {
	return s.store.List(ctx, utils.CalendarDate(s.clock(), s.loc))
}

// Invalidate drops today's analysis for symbol so the next call recomputes.
func (s *Service) Invalidate(ctx context.Context, symbol string) error {
	sym, err := s.checkSymbol(symbol)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, s.Key(sym))
}

// Breakers returns provider circuit breaker stats, or nil without a chain.
func (s *Service) Breakers() []resilience.CircuitBreakerStats {
	if s.chain == nil {
		return nil
	}
	return s.chain.Breakers().AllStats()
}

// PerformCurrencyAnalysis returns today's analysis of symbol, computing and
// storing it on a miss. Only invalid input and missing market data are
// errors; provider trouble yields a rule-based result.
//
// Concurrent calls for the same key share one computation. It runs
// detached from the caller's cancellation so an abandoned request still
// fills the store.
func (s *Service) PerformCurrencyAnalysis(ctx context.Context, symbol string) (*models.AnalysisResult, error) {
	sym, err := s.checkSymbol(symbol)
	if err != nil {
		return nil, err
	}
	key := s.Key(sym)

	if res, ok := s.cached(ctx, key); ok {
		return res, nil
	}

	ch := s.flights.DoChan(key.String(), func() (interface{}, error) {
		detached := context.WithoutCancel(ctx)
		if res, ok := s.cached(detached, key); ok {
			return res, nil
		}
		return s.compute(detached, key)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		// Shared callers must not alias one result.
		return clone(r.Val.(*models.AnalysisResult))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AnalyzeBatch analyzes symbols with bounded concurrency. One symbol's
// failure does not stop the others. Items keep the input order.
func (s *Service) AnalyzeBatch(ctx context.Context, symbols []string) []BatchItem {
	items := make([]BatchItem, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Schedule.Concurrency)

	for i, sym := range symbols {
		g.Go(func() error {
			res, err := s.PerformCurrencyAnalysis(gctx, sym)
			items[i] = BatchItem{Symbol: models.NormalizeSymbol(sym), Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func (s *Service) checkSymbol(symbol string) (string, error) {
	sym := models.NormalizeSymbol(symbol)
	if err := s.validate.Struct(symbolInput{Symbol: sym}); err != nil {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidSymbol, symbol)
	}
	return sym, nil
}

func (s *Service) cached(ctx context.Context, key store.Key) (*models.AnalysisResult, bool) {
	payload, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, apperrors.ErrDataNotFound) {
			s.metrics.RecordStoreFailure("get")
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("Store read failed, recomputing")
		}
		return nil, false
	}
	res, err := decode(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Discarding undecodable stored analysis")
		return nil, false
	}
	s.metrics.RecordAnalysis(metrics.OutcomeCached, 0)
	return res, true
}

func (s *Service) compute(ctx context.Context, key store.Key) (*models.AnalysisResult, error) {
	start := s.clock()
	logger := logging.WithSymbol(s.logger, key.Symbol)

	fetchStart := time.Now()
	snap, err := marketdata.FetchSnapshot(ctx, s.gateway, key.Symbol, s.cfg.Market.Interval, s.cfg.Market.CandleLimit)
	s.metrics.RecordLatency("market_data", time.Since(fetchStart))
	if err != nil {
		s.metrics.RecordAnalysis(metrics.OutcomeError, time.Since(fetchStart))
		logger.Error().Err(err).Msg("Market data unavailable")
		return nil, err
	}

	if n := snap.Series.Len(); n < s.calc.MinWindow() {
		return nil, s.shortHistory(logger, key.Symbol, n, fetchStart)
	}
	set, err := s.calc.Calculate(ctx, snap.Series, snap.Quote.Price)
	if err != nil {
		return nil, fmt.Errorf("calculating indicators: %w", err)
	}
	if set.Completeness() == 0 {
		return nil, s.shortHistory(logger, key.Symbol, snap.Series.Len(), fetchStart)
	}

	story, chainRes, strategy := s.narrate(ctx, logger, snap, set)

	res := s.merger.Merge(set, story)
	res.ID = uuid.NewString()
	res.Symbol = key.Symbol
	res.AnalysisDate = key.Date
	res.AnalysisType = key.Type
	res.CurrentPrice = snap.Quote.Price
	res.PriceChangePercent24h = snap.Ticker.PriceChangePercent
	res.DataSources.MarketData = s.cfg.Market.Source
	res.DataSources.CandleInterval = snap.Series.Interval
	res.DataSources.CandleCount = snap.Series.Len()
	if story != nil {
		res.DataSources.Provider = chainRes.Provider
		res.DataSources.AnalysisModel = chainRes.Model
	}
	res.QualityMetrics.TokensUsed = chainRes.TokensUsed
	res.QualityMetrics.AIAttempts = len(chainRes.Attempts)
	res.QualityMetrics.ExtractionStrategy = strategy
	res.CreatedAt = s.clock().UTC()
	elapsed := s.clock().Sub(start)
	res.QualityMetrics.ProcessingTimeMs = elapsed.Milliseconds()

	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encoding analysis: %w", err)
	}
	if err := s.store.Put(ctx, key, payload); err != nil {
		s.metrics.RecordStoreFailure("put")
		logger.Error().Err(err).Str("key", key.String()).Msg("Failed to store analysis; next call will recompute")
	}

	outcome := metrics.OutcomeAI
	if res.IsFallback() {
		outcome = metrics.OutcomeFallback
	}
	s.metrics.RecordAnalysis(outcome, elapsed)
	logging.LogAnalysis(logger, key.Symbol, key.Date, res.DataSources.Provider, res.QualityMetrics.Confidence, elapsed)

	// The caller gets exactly what a later cache hit will return.
	return decode(payload)
}

// shortHistory reports a series too short for any indicator. Nothing is
// stored, so a later call with more history recomputes.
func (s *Service) shortHistory(logger zerolog.Logger, symbol string, n int, since time.Time) error {
	err := apperrors.NewDataError("candles", symbol,
		fmt.Sprintf("%d candles, indicators need %d to %d", n, s.calc.MinWindow(), s.calc.MinCandles()),
		apperrors.ErrInsufficientHistory)
	s.metrics.RecordAnalysis(metrics.OutcomeError, time.Since(since))
	logger.Error().Err(err).Msg("Market data unavailable")
	return err
}

// narrate runs the provider chain and parses its output. A nil narrative
// means the result falls back to the indicator vote.
func (s *Service) narrate(ctx context.Context, logger zerolog.Logger, snap *models.MarketSnapshot, set models.IndicatorSet) (*models.Narrative, agents.ChainResult, string) {
	if s.chain == nil || s.chain.Len() == 0 {
		logger.Info().Msg("No AI providers configured, using rule-based analysis")
		return nil, agents.ChainResult{Exhausted: true}, ""
	}

	p := prompt.Build(prompt.Input{
		Symbol:     snap.Quote.Symbol,
		Interval:   snap.Series.Interval,
		Price:      snap.Quote.Price,
		Ticker:     snap.Ticker,
		Indicators: set,
	})

	chainStart := time.Now()
	res := s.chain.Run(ctx, p.System, p.User, narrative.Validate)
	s.metrics.RecordLatency("ai_chain", time.Since(chainStart))
	if res.Exhausted {
		return nil, res, ""
	}

	story, strategy, err := narrative.Parse(res.Text)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("provider", res.Provider).
			Str("model", res.Model).
			Int("length", len(res.Text)).
			Msg("No narrative in completion, using rule-based analysis")
		return nil, res, ""
	}
	if len(story.Defaults) > 0 {
		logger.Debug().Strs("defaults", story.Defaults).Msg("Narrative fields defaulted")
	}
	return story, res, strategy
}

func decode(payload []byte) (*models.AnalysisResult, error) {
	var res models.AnalysisResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decoding analysis: %w", err)
	}
	return &res, nil
}

func clone(res *models.AnalysisResult) (*models.AnalysisResult, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encoding analysis: %w", err)
	}
	return decode(payload)
}
