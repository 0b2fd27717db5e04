package agents

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"

	apperrors "crypto-analyst/internal/errors"
)

// OpenAIClient implements Provider with the OpenAI chat API. DeepSeek
// speaks the same protocol and reuses it with a different base URL.
type OpenAIClient struct {
	name   string
	client *openai.Client
}

// NewOpenAIClient creates a client. An empty baseURL uses the OpenAI default.
func NewOpenAIClient(name, apiKey, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		name:   name,
		client: openai.NewClientWithConfig(cfg),
	}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Complete sends the system and user prompt and asks for a JSON object.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, apperrors.ErrEmptyCompletion
	}

	choice := resp.Choices[0]
	return &Completion{
		Text:         choice.Message.Content,
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(choice.FinishReason),
	}, nil
}
