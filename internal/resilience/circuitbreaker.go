// Package resilience provides the circuit breakers that keep the provider
// chain from hammering a completion API that is already failing.
package resilience

import (
	"sync"
	"time"

	apperrors "crypto-analyst/internal/errors"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"    // Normal operation
	CircuitOpen     CircuitState = "OPEN"      // Failing, rejecting requests
	CircuitHalfOpen CircuitState = "HALF_OPEN" // One trial call at a time
)

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes needed to close
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before a trial call is allowed
	Cooldown time.Duration
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         5 * time.Minute,
	}
}

// CircuitBreaker counts consecutive failures of one provider. The caller
// asks Allow before an attempt and reports the outcome afterwards.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failures        int
	successes       int
	openedAt        time.Time
	lastStateChange time.Time
	trialing        bool // a half-open trial call has not reported yet

	totalFailures  int64
	totalSuccesses int64
	totalRejected  int64
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		name:            name,
		config:          config,
		now:             time.Now,
		state:           CircuitClosed,
		lastStateChange: time.Now(),
	}
}

// Allow returns apperrors.ErrCircuitOpen while the circuit is open. Once
// the cooldown has passed the circuit moves to half-open and the request
// goes through as a trial call. Other callers are rejected until it
// reports its outcome.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.Cooldown {
			cb.totalRejected++
			return apperrors.ErrCircuitOpen
		}
		cb.transitionTo(CircuitHalfOpen)
	case CircuitHalfOpen:
		if cb.trialing {
			cb.totalRejected++
			return apperrors.ErrCircuitOpen
		}
	default:
		return nil
	}
	cb.trialing = true
	return nil
}

// RecordSuccess reports a successful attempt.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalSuccesses++
	cb.trialing = false

	switch cb.state {
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transitionTo(CircuitClosed)
		}
	case CircuitClosed:
		cb.failures = 0
	}
}

// RecordFailure reports a failed attempt.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalFailures++
	cb.trialing = false

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		// A failed trial reopens for another full cooldown
		cb.transitionTo(CircuitOpen)
	}
}

func (cb *CircuitBreaker) transitionTo(state CircuitState) {
	cb.state = state
	cb.lastStateChange = cb.now()
	if state == CircuitOpen {
		cb.openedAt = cb.lastStateChange
	}
	cb.failures = 0
	cb.successes = 0
	cb.trialing = false
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Stats returns circuit breaker statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		Name:            cb.name,
		State:           cb.state,
		TotalSuccesses:  cb.totalSuccesses,
		TotalFailures:   cb.totalFailures,
		TotalRejected:   cb.totalRejected,
		CurrentFailures: cb.failures,
		LastStateChange: cb.lastStateChange,
	}
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(CircuitClosed)
}

// CircuitBreakerStats holds circuit breaker statistics.
type CircuitBreakerStats struct {
	Name            string       `json:"name"`
	State           CircuitState `json:"state"`
	TotalSuccesses  int64        `json:"totalSuccesses"`
	TotalFailures   int64        `json:"totalFailures"`
	TotalRejected   int64        `json:"totalRejected"`
	CurrentFailures int          `json:"currentFailures"`
	LastStateChange time.Time    `json:"lastStateChange"`
}

// FailureRate returns the failure rate as a percentage of attempts made.
func (s CircuitBreakerStats) FailureRate() float64 {
	total := s.TotalFailures + s.TotalSuccesses
	if total == 0 {
		return 0
	}
	return float64(s.TotalFailures) / float64(total) * 100
}
