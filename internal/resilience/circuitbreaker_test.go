package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "crypto-analyst/internal/errors"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCircuitBreakerLifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg := NewCircuitBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Minute}).
		WithClock(clock.now)
	cb := reg.Get("openai")
	assert.Same(t, cb, reg.Get("openai"))

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Allow())
		cb.RecordFailure()
	}
	assert.Equal(t, CircuitClosed, cb.State())

	// A success resets the consecutive count.
	cb.RecordSuccess()
	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Allow())
		cb.RecordFailure()
	}
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), apperrors.ErrCircuitOpen)

	clock.advance(30 * time.Second)
	assert.ErrorIs(t, cb.Allow(), apperrors.ErrCircuitOpen)

	clock.advance(31 * time.Second)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// Failed trial reopens.
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	clock.advance(2 * time.Minute)
	require.NoError(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())

	stats := reg.AllStats()
	require.Len(t, stats, 1)
	assert.Equal(t, "openai", stats[0].Name)
	assert.Equal(t, int64(2), stats[0].TotalRejected)
	assert.Equal(t, int64(6), stats[0].TotalFailures)
	assert.InDelta(t, 75.0, stats[0].FailureRate(), 1e-9)
}

func TestHalfOpenAdmitsOneCallerAtATime(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg := NewCircuitBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: time.Minute}).
		WithClock(clock.now)
	cb := reg.Get("gemini")

	require.NoError(t, cb.Allow())
	cb.RecordFailure()
	require.Equal(t, CircuitOpen, cb.State())
	clock.advance(2 * time.Minute)

	// Four batch workers arrive together; only the first gets through.
	require.NoError(t, cb.Allow())
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Allow(), apperrors.ErrCircuitOpen)
	}
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// Its success frees the slot for the next one, which closes the circuit.
	cb.RecordSuccess()
	assert.Equal(t, CircuitHalfOpen, cb.State())
	require.NoError(t, cb.Allow())
	assert.ErrorIs(t, cb.Allow(), apperrors.ErrCircuitOpen)
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Allow())
	}
	assert.Equal(t, int64(4), cb.Stats().TotalRejected)
}

func TestRegistryResetAll(t *testing.T) {
	reg := NewCircuitBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	reg.Get("gemini").RecordFailure()
	reg.Get("anthropic").RecordFailure()
	assert.Equal(t, CircuitOpen, reg.Get("gemini").State())

	reg.ResetAll()
	for _, s := range reg.AllStats() {
		assert.Equal(t, CircuitClosed, s.State, s.Name)
	}
	assert.Equal(t, "anthropic", reg.AllStats()[0].Name)
}
