package agents

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "crypto-analyst/internal/errors"
)

// AnthropicClient implements Provider with the Messages API.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates a client. SDK retries are disabled; the chain
// owns retry policy.
func NewAnthropicClient(apiKey, baseURL string) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...)}
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return ProviderAnthropic
}

// Complete sends one user message with the system prompt.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, apperrors.ErrEmptyCompletion
	}

	return &Completion{
		Text:         text,
		TokensUsed:   int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		FinishReason: string(msg.StopReason),
	}, nil
}
