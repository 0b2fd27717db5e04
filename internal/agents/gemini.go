package agents

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	apperrors "crypto-analyst/internal/errors"
)

// GeminiClient implements Provider with the Gemini API.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey, baseURL string) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Name returns the provider name.
func (c *GeminiClient) Name() string {
	return ProviderGemini
}

// Complete generates content with the system prompt as instruction.
func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		},
		Temperature:      genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens:  int32(req.MaxTokens),
		ResponseMIMEType: "application/json",
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, apperrors.ErrEmptyCompletion
	}

	out := &Completion{Text: text}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	return out, nil
}
