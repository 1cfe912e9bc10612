package deps

import (
	"context"
)

// LLMClient abstracts a one-shot text completion call.
type LLMClient interface {
	GenerateContent(ctx context.Context, prompt string, temperature float32, maxOutputTokens int32) (string, error)
}
