package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-analyst/internal/config"
	"crypto-analyst/internal/models"
	"crypto-analyst/internal/service"
	"crypto-analyst/internal/store"
)

type recordingBatcher struct {
	mu    sync.Mutex
	calls [][]string
}

func (b *recordingBatcher) AnalyzeBatch(ctx context.Context, symbols []string) []service.BatchItem {
	b.mu.Lock()
	b.calls = append(b.calls, symbols)
	b.mu.Unlock()

	items := make([]service.BatchItem, len(symbols))
	for i, s := range symbols {
		items[i] = service.BatchItem{Symbol: s, Result: &models.AnalysisResult{Symbol: s}}
		if s == "BADUSDT" {
			items[i] = service.BatchItem{Symbol: s, Err: errors.New("unknown symbol")}
		}
	}
	return items
}

func (b *recordingBatcher) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Schedule.Symbols = []string{"BTCUSDT", "BADUSDT"}
	cfg.Cache.TTL = 48 * time.Hour
	return cfg
}

func TestPrewarmReportsFailures(t *testing.T) {
	b := &recordingBatcher{}
	s, err := New(testConfig(), b, store.NewMemoryStore(), zerolog.Nop())
	require.NoError(t, err)

	failed := s.Prewarm(context.Background())
	require.Len(t, failed, 1)
	assert.Equal(t, "BADUSDT", failed[0].Symbol)
	assert.Equal(t, [][]string{{"BTCUSDT", "BADUSDT"}}, b.calls)
}

func TestPruneUsesRetentionWindow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	for _, d := range []string{"2026-10-15", "2026-10-16", "2026-10-17", "2026-10-18", "2026-10-19"} {
		require.NoError(t, st.Put(ctx, store.Key{Symbol: "BTCUSDT", Date: d, Type: "technical"}, []byte("{}")))
	}

	s, err := New(testConfig(), &recordingBatcher{}, st, zerolog.Nop())
	require.NoError(t, err)
	s.clock = func() time.Time { return time.Date(2026, 10, 19, 0, 1, 0, 0, time.UTC) }

	n, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, d := range []string{"2026-10-17", "2026-10-18", "2026-10-19"} {
		keys, err := st.List(ctx, d)
		require.NoError(t, err)
		assert.Len(t, keys, 1, d)
	}
}

type plainStore struct{ store.AnalysisStore }

func TestJobsRegistered(t *testing.T) {
	s, err := New(testConfig(), &recordingBatcher{}, store.NewMemoryStore(), zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s, err = New(testConfig(), &recordingBatcher{}, plainStore{store.NewMemoryStore()}, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 1)
	n, err := s.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	cfg := testConfig()
	cfg.Schedule.Cron = "not a cron spec"
	_, err = New(cfg, &recordingBatcher{}, store.NewMemoryStore(), zerolog.Nop())
	assert.Error(t, err)
}

func TestCronFiresPrewarm(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.Cron = "* * * * * *"
	b := &recordingBatcher{}
	s, err := New(cfg, b, store.NewMemoryStore(), zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool { return b.count() > 0 }, 3*time.Second, 50*time.Millisecond)
}
