package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"
)

// errPromptBlocked is returned when Gemini refuses the prompt outright.
var errPromptBlocked = errors.New("gemini: prompt blocked")

// GeminiLLMClient implements LLMClient using the Gemini API
type GeminiLLMClient struct {
	client *genai.Client
	model  string
}

// NewGeminiLLMClient creates a new GeminiLLMClient
func NewGeminiLLMClient(client *genai.Client, model string) *GeminiLLMClient {
	return &GeminiLLMClient{
		client: client,
		model:  model,
	}
}

// NewGeminiLLMClientFromKey builds the genai client for apiKey.
func NewGeminiLLMClientFromKey(ctx context.Context, apiKey, model string) (*GeminiLLMClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return NewGeminiLLMClient(client, model), nil
}

// GenerateContent sends prompt as a single user turn. Thinking is disabled so
// short copywriting calls stay well inside the request budget.
func (c *GeminiLLMClient) GenerateContent(ctx context.Context, prompt string, temperature float32, maxOutputTokens int32) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: maxOutputTokens,
		ThinkingConfig:  &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}, config)
	if err != nil {
		return "", err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", errPromptBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		log.Printf("[WARN] Gemini stopped at %d output tokens", maxOutputTokens)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
