package agent

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicLLMClient implements LLMClient using the Claude Messages API.
type AnthropicLLMClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicLLMClient creates a client for apiKey. baseURL may be empty.
func NewAnthropicLLMClient(apiKey, model, baseURL string) *AnthropicLLMClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries would outlive the request timeout budget.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicLLMClient{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// GenerateContent sends prompt as a single user message.
func (c *AnthropicLLMClient) GenerateContent(ctx context.Context, prompt string, temperature float32, maxOutputTokens int32) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxOutputTokens),
		Temperature: anthropic.Float(float64(temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
