package agent

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAILLMClient implements LLMClient against any OpenAI-compatible
// chat completions endpoint.
type OpenAILLMClient struct {
	client openai.Client
	model  string
}

// NewOpenAILLMClient creates a client for apiKey. baseURL may be empty.
func NewOpenAILLMClient(apiKey, model, baseURL string) *OpenAILLMClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// The copywriter owns retries.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAILLMClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// GenerateContent sends prompt as a single user message.
func (c *OpenAILLMClient) GenerateContent(ctx context.Context, prompt string, temperature float32, maxOutputTokens int32) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Temperature: openai.Float(float64(temperature)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if maxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxOutputTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("empty response from OpenAI API")
	}
	return completion.Choices[0].Message.Content, nil
}
