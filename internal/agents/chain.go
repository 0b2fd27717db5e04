package agents

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"crypto-analyst/internal/config"
	apperrors "crypto-analyst/internal/errors"
	"crypto-analyst/internal/logging"
	"crypto-analyst/internal/metrics"
	"crypto-analyst/internal/resilience"
	"crypto-analyst/internal/security"
	"crypto-analyst/pkg/utils"
)

// State is a position of the provider chain state machine.
type State string

const (
	StatePending        State = "pending"
	StateRequesting     State = "requesting"
	StateSuccess        State = "success"
	StateRetryable      State = "retryable"
	StateExhausted      State = "exhausted"
	StateChainExhausted State = "chain_exhausted"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateChainExhausted
}

// Outcome is how a single attempt ended.
type Outcome string

const (
	OutcomeNone           Outcome = ""
	OutcomeSuccess        Outcome = "success"
	OutcomeRetryable      Outcome = "retryable"
	OutcomeExhausted      Outcome = "exhausted"
	OutcomeInvalidRequest Outcome = "invalid_request"
	OutcomeMalformed      Outcome = "malformed"
	OutcomeCircuitOpen    Outcome = "circuit_open"
)

// OutcomeFor maps a failure class onto an attempt outcome.
func OutcomeFor(class apperrors.FailureClass) Outcome {
	switch class {
	case apperrors.FailureRetryable:
		return OutcomeRetryable
	case apperrors.FailureInvalidRequest:
		return OutcomeInvalidRequest
	}
	return OutcomeExhausted
}

// Step is the chain's full position: state, entry index and retries
// already spent on that entry.
type Step struct {
	State   State
	Entry   int
	Retries int
}

// Limits bound the walk.
type Limits struct {
	Entries    int
	MaxRetries int
}

// Next is the transition function. outcome only matters when leaving
// StateRequesting. Terminal steps map to themselves.
func Next(s Step, outcome Outcome, lim Limits) Step {
	switch s.State {
	case StatePending:
		if lim.Entries <= 0 {
			return Step{State: StateChainExhausted}
		}
		return Step{State: StateRequesting}

	case StateRequesting:
		switch outcome {
		case OutcomeSuccess:
			return Step{State: StateSuccess, Entry: s.Entry, Retries: s.Retries}
		case OutcomeRetryable:
			if s.Retries < lim.MaxRetries {
				return Step{State: StateRetryable, Entry: s.Entry, Retries: s.Retries + 1}
			}
		}
		return Step{State: StateExhausted, Entry: s.Entry, Retries: s.Retries}

	case StateRetryable:
		return Step{State: StateRequesting, Entry: s.Entry, Retries: s.Retries}

	case StateExhausted:
		if s.Entry+1 < lim.Entries {
			return Step{State: StateRequesting, Entry: s.Entry + 1}
		}
		return Step{State: StateChainExhausted, Entry: s.Entry, Retries: s.Retries}
	}
	return s
}

// ChainEntry is one provider and model in fallback order.
type ChainEntry struct {
	Provider Provider
	Model    string
}

// Attempt records one call to a provider.
type Attempt struct {
	Provider   string        `json:"provider"`
	Model      string        `json:"model"`
	Number     int           `json:"number"`
	Outcome    Outcome       `json:"outcome"`
	Latency    time.Duration `json:"latency"`
	TokensUsed int           `json:"tokensUsed"`
	Err        error         `json:"-"`
}

// ChainResult is what the chain produced. Exhausted means no entry
// returned an accepted completion; it is not an error.
type ChainResult struct {
	Text       string
	Provider   string
	Model      string
	TokensUsed int
	Attempts   []Attempt
	Exhausted  bool
}

// AcceptFunc inspects a completion. A non-nil error marks it malformed.
type AcceptFunc func(text string) error

// Chain walks the configured entries until one succeeds.
type Chain struct {
	entries  []ChainEntry
	cfg      config.AIConfig
	breakers *resilience.CircuitBreakerRegistry
	metrics  *metrics.Recorder
	logger   zerolog.Logger
	sleep    func(context.Context, time.Duration) error
}

// NewChain creates a chain over entries.
func NewChain(entries []ChainEntry, cfg config.AIConfig, rec *metrics.Recorder, logger zerolog.Logger) *Chain {
	return &Chain{
		entries: entries,
		cfg:     cfg,
		breakers: resilience.NewCircuitBreakerRegistry(resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerThreshold,
			SuccessThreshold: 1,
			Cooldown:         cfg.BreakerCooldown,
		}),
		metrics: rec,
		logger:  logging.WithComponent(logger, "ai_chain"),
		sleep:   utils.Sleep,
	}
}

// Len returns the number of entries.
func (c *Chain) Len() int {
	return len(c.entries)
}

// Breakers exposes the per-provider circuit breakers.
func (c *Chain) Breakers() *resilience.CircuitBreakerRegistry {
	return c.breakers
}

// Run sends the prompt down the chain. accept may be nil. When the chain
// is configured to advance on malformed output, a completion rejected by
// accept counts as exhausted for that entry.
func (c *Chain) Run(ctx context.Context, system, prompt string, accept AcceptFunc) ChainResult {
	var result ChainResult
	lim := Limits{Entries: len(c.entries), MaxRetries: c.cfg.MaxRetries}
	step := Next(Step{State: StatePending}, OutcomeNone, lim)

	for !step.State.Terminal() {
		if ctx.Err() != nil {
			break
		}

		switch step.State {
		case StateRequesting:
			entry := c.entries[step.Entry]
			att, completion := c.attempt(ctx, entry, len(result.Attempts)+1, system, prompt, accept)
			result.Attempts = append(result.Attempts, att)
			result.TokensUsed += att.TokensUsed
			if att.Outcome == OutcomeSuccess {
				result.Text = completion.Text
				result.Provider = entry.Provider.Name()
				result.Model = entry.Model
			}
			step = Next(step, att.Outcome, lim)

		case StateRetryable:
			delay := utils.CalculateBackoff(step.Retries-1, c.cfg.RetryBackoff, 30*time.Second, 2)
			if err := c.sleep(ctx, delay); err != nil {
				step = Step{State: StateChainExhausted, Entry: step.Entry}
				continue
			}
			step = Next(step, OutcomeNone, lim)

		default:
			step = Next(step, OutcomeNone, lim)
		}
	}

	result.Exhausted = step.State != StateSuccess
	if result.Exhausted {
		c.logger.Warn().
			Int("attempts", len(result.Attempts)).
			Int("entries", len(c.entries)).
			Msg("AI chain exhausted")
	}
	return result
}

// attempt makes one bounded call. The call is abandoned when the attempt
// deadline passes even if the provider ignores its context.
func (c *Chain) attempt(ctx context.Context, entry ChainEntry, number int, system, prompt string, accept AcceptFunc) (Attempt, *Completion) {
	name := entry.Provider.Name()
	att := Attempt{Provider: name, Model: entry.Model, Number: number}
	logger := logging.WithProvider(c.logger, name, entry.Model)

	breaker := c.breakers.Get(name)
	if err := breaker.Allow(); err != nil {
		att.Outcome = OutcomeCircuitOpen
		att.Err = err
		c.metrics.RecordCircuitRejection(name)
		logging.LogAttempt(c.logger, name, entry.Model, number, 0, string(att.Outcome), 0, err)
		return att, nil
	}

	req := CompletionRequest{
		Model:       entry.Model,
		System:      system,
		Prompt:      prompt,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	start := time.Now()
	completion, err := c.call(ctx, entry.Provider, req)
	att.Latency = time.Since(start)

	switch {
	case err != nil:
		pe := Classify(name, entry.Model, err)
		att.Outcome = OutcomeFor(pe.Class)
		att.Err = security.RedactError(pe)
		breaker.RecordFailure()
	default:
		att.TokensUsed = completion.TokensUsed
		att.Outcome = OutcomeSuccess
		breaker.RecordSuccess()
		if accept != nil {
			if aerr := accept(completion.Text); aerr != nil && c.cfg.AdvanceOnMalformed {
				att.Outcome = OutcomeMalformed
				att.Err = aerr
			}
		}
	}

	c.metrics.RecordAttempt(name, entry.Model, string(att.Outcome), att.Latency, att.TokensUsed)
	if att.Outcome == OutcomeInvalidRequest {
		security.SafeErr(logger.Error(), att.Err).
			Str("event", "ai_attempt").
			Int("attempt", number).
			Msg("Provider rejected request")
	} else {
		logging.LogAttempt(c.logger, name, entry.Model, number, att.Latency, string(att.Outcome), att.TokensUsed, att.Err)
	}
	return att, completion
}

func (c *Chain) call(ctx context.Context, p Provider, req CompletionRequest) (*Completion, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	type result struct {
		completion *Completion
		err        error
	}
	done := make(chan result, 1)
	go func() {
		out, err := p.Complete(actx, req)
		done <- result{completion: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.completion == nil {
			return nil, apperrors.ErrEmptyCompletion
		}
		return r.completion, r.err
	case <-actx.Done():
		return nil, apperrors.Join(apperrors.ErrTimeout, actx.Err())
	}
}
