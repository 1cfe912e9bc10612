package agent

import (
	"context"
	"fmt"

	"fiche-livre/backend/internal/agent/deps"

	"golang.org/x/time/rate"
)

// PacedLLMClient spaces out outbound completion calls with a process-wide
// token bucket so that bursts admitted by the per-client limiter do not trip
// the provider's own quota.
type PacedLLMClient struct {
	next    deps.LLMClient
	limiter *rate.Limiter
}

// NewPacedLLMClient wraps next. A non-positive rps disables pacing.
func NewPacedLLMClient(next deps.LLMClient, rps float64, burst int) *PacedLLMClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &PacedLLMClient{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// GenerateContent waits for a token, bounded by ctx, then delegates.
func (c *PacedLLMClient) GenerateContent(ctx context.Context, prompt string, temperature float32, maxOutputTokens int32) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		// Wait fails early when the next token lies beyond the deadline.
		return "", fmt.Errorf("%w: %v", errPacingBackoff, err)
	}
	return c.next.GenerateContent(ctx, prompt, temperature, maxOutputTokens)
}
