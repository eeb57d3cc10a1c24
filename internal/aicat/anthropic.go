package aicat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider calls the Anthropic Messages API through the official SDK.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates an Anthropic provider. An empty baseURL keeps the SDK
// default. Retries are disabled; a failed call falls back immediately.
func NewAnthropic(apiKey, model, baseURL string, timeout time.Duration) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...), model: model}
}

// Name returns the provider name.
func (a *AnthropicProvider) Name() string { return "anthropic" }

// Model returns the model identifier.
func (a *AnthropicProvider) Model() string { return a.model }

// Generate sends prompt as a single user message and returns the first text
// block of the reply.
func (a *AnthropicProvider) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(params.MaxOutputTokens),
		Temperature: anthropic.Float(params.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("anthropic: %w: status %d: %v", ErrEnvelope, apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("anthropic: request: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic: %w: no text content", ErrEnvelope)
}
