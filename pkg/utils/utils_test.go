package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{10, time.Second},
	}
	for _, tt := range tests {
		got := CalculateBackoff(tt.attempt, 100*time.Millisecond, time.Second, 2)
		assert.Equal(t, tt.want, got, "attempt %d", tt.attempt)
	}
}

func TestRetryWithResultStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	cfg := RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		BackoffFactor: 1,
		Retryable:     func(err error) bool { return !errors.Is(err, permanent) },
	}

	_, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryWithResultRecovers(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}

	got, err := RetryWithResult(context.Background(), cfg, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalendarDate(t *testing.T) {
	// 23:30 UTC is already the next day in Tokyo.
	ts := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-14", CalendarDate(ts, time.UTC))
	assert.Equal(t, "2026-03-15", CalendarDate(ts, LoadLocation("Asia/Tokyo")))
	assert.Equal(t, "2026-03-14", CalendarDate(ts, nil))
	assert.Equal(t, time.UTC, LoadLocation("Nowhere/Special"))

	next := NextMidnight(ts, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), next)
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{97000, "97000.00"},
		{2.5, "2.5000"},
		{0.00001234, "0.00001234"},
		{0, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPrice(tt.in))
	}
	assert.Equal(t, "n/a", FormatNullable(null.Float{}, 2))
	assert.Equal(t, "61.25", FormatNullable(null.FloatFrom(61.25), 2))
	assert.Equal(t, "+2.50%", FormatPercent(2.5))
	assert.Equal(t, "1.50M", FormatCompact(1_500_000))
}
