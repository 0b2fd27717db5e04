// Package scheduler pre-warms the daily analyses and prunes old ones.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"crypto-analyst/internal/config"
	"crypto-analyst/internal/logging"
	"crypto-analyst/internal/service"
	"crypto-analyst/internal/store"
	"crypto-analyst/pkg/utils"
)

// pruneSpec runs shortly after midnight, before the pre-warm.
const pruneSpec = "0 1 0 * * *"

// Batcher analyzes several symbols.
type Batcher interface {
	AnalyzeBatch(ctx context.Context, symbols []string) []service.BatchItem
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron      *cron.Cron
	batcher   Batcher
	pruner    store.Pruner
	symbols   []string
	retention time.Duration
	loc       *time.Location
	clock     utils.Clock
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// New registers the pre-warm job on cfg.Schedule.Cron and, when st can be
// pruned, a nightly prune of entries older than the cache TTL. Specs use
// six fields with seconds and are read in the cache timezone.
func New(cfg *config.Config, b Batcher, st store.AnalysisStore, logger zerolog.Logger) (*Scheduler, error) {
	loc := utils.LoadLocation(cfg.Cache.Timezone)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:      cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		batcher:   b,
		symbols:   cfg.Schedule.Symbols,
		retention: cfg.Cache.TTL,
		loc:       loc,
		clock:     utils.SystemClock,
		logger:    logging.WithComponent(logger, "scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
	if p, ok := st.(store.Pruner); ok {
		s.pruner = p
	}

	if _, err := s.cron.AddFunc(cfg.Schedule.Cron, func() { s.Prewarm(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("register prewarm task: %w", err)
	}
	if s.pruner != nil {
		if _, err := s.cron.AddFunc(pruneSpec, func() { s.Prune(s.ctx) }); err != nil {
			cancel()
			return nil, fmt.Errorf("register prune task: %w", err)
		}
	}
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().
		Strs("symbols", s.symbols).
		Int("jobs", len(s.cron.Entries())).
		Msg("Scheduler started")
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// Prewarm analyzes every configured symbol and returns the failures.
func (s *Scheduler) Prewarm(ctx context.Context) []service.BatchItem {
	start := time.Now()
	items := s.batcher.AnalyzeBatch(ctx, s.symbols)

	var failed []service.BatchItem
	for _, item := range items {
		if item.Err != nil {
			failed = append(failed, item)
			s.logger.Error().Err(item.Err).Str("symbol", item.Symbol).Msg("Pre-warm analysis failed")
		}
	}
	s.logger.Info().
		Int("symbols", len(items)).
		Int("failed", len(failed)).
		Dur("duration", time.Since(start)).
		Msg("Pre-warm finished")
	return failed
}

// Prune removes entries older than the retention window.
func (s *Scheduler) Prune(ctx context.Context) (int64, error) {
	if s.pruner == nil {
		return 0, nil
	}
	before := utils.CalendarDate(s.clock().Add(-s.retention), s.loc)
	n, err := s.pruner.Prune(ctx, before)
	if err != nil {
		s.logger.Error().Err(err).Str("before", before).Msg("Prune failed")
		return 0, err
	}
	s.logger.Info().Int64("removed", n).Str("before", before).Msg("Pruned old analyses")
	return n, nil
}
