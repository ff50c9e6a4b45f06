package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements TextGenerator using the Anthropic Messages API.
// Anthropic does not offer an embeddings endpoint, so this client is only
// used for insight generation; embeddings come from a separate provider.
type AnthropicClient struct {
	client         *anthropic.Client
	circuitBreaker *CircuitBreaker
	model          string
	maxTokens      int64
}

// AnthropicConfig holds Anthropic client configuration.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// Model is the model name (default: claude-3-5-sonnet-20241022).
	Model string

	// MaxTokens caps the completion length (default: 1024).
	MaxTokens int64
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(config AnthropicConfig) *AnthropicClient {
	if config.Model == "" {
		config.Model = "claude-3-5-sonnet-20241022"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}

	client := anthropic.NewClient(option.WithAPIKey(config.APIKey))
	return &AnthropicClient{
		client:         &client,
		circuitBreaker: NewCircuitBreaker(),
		model:          config.Model,
		maxTokens:      config.MaxTokens,
	}
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

// Complete sends a single-turn message request and returns the concatenated
// text blocks of the response.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.complete(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return "", fmt.Errorf("anthropic circuit breaker open: %w", err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *AnthropicClient) complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic message request: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("anthropic returned no text content")
	}

	return text, nil
}
