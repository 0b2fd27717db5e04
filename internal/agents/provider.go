// Package agents talks to the completion providers and runs the ordered
// fallback chain across them.
package agents

import (
	"context"
	"fmt"

	"crypto-analyst/internal/config"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderDeepSeek  = "deepseek"
)

const deepSeekBaseURL = "https://api.deepseek.com/v1"

// CompletionRequest is one prompt sent to one model.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completion is the raw text a provider returned.
type Completion struct {
	Text         string
	TokensUsed   int
	FinishReason string
}

// Provider is a completion API. Complete must honour ctx and return an
// error that Classify understands.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// NewProvider builds the client for a chain entry.
func NewProvider(ctx context.Context, entry config.ProviderEntry, apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("no API key for provider %s", entry.Provider)
	}
	switch entry.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(ProviderOpenAI, apiKey, entry.BaseURL), nil
	case ProviderDeepSeek:
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = deepSeekBaseURL
		}
		return NewOpenAIClient(ProviderDeepSeek, apiKey, baseURL), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, apiKey, entry.BaseURL)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, entry.BaseURL), nil
	}
	return nil, fmt.Errorf("unknown provider %q", entry.Provider)
}

// BuildChain creates providers for every configured entry that has a key.
// Entries whose client cannot be built are skipped.
func BuildChain(ctx context.Context, cfg *config.Config) ([]ChainEntry, []error) {
	var (
		entries []ChainEntry
		errs    []error
	)
	for _, e := range cfg.ChainWithKeys() {
		p, err := NewProvider(ctx, e, cfg.Credentials.KeyFor(e.Provider))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", e.Provider, e.Model, err))
			continue
		}
		entries = append(entries, ChainEntry{Provider: p, Model: e.Model})
	}
	return entries, errs
}
