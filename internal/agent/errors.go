package agent

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Closed set of generation failures seen by the HTTP layer.
var (
	ErrNotConfigured    = errors.New("agent: no completion credential configured")
	ErrModelTimeout     = errors.New("agent: completion timed out")
	ErrModelRateLimited = errors.New("agent: completion provider rate limited")
	ErrModelFailed      = errors.New("agent: completion failed")
)

var errPacingBackoff = errors.New("outbound pacing would exceed deadline")

// classify maps a raw client error onto the closed set. The raw error is
// only ever logged.
func classify(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrModelTimeout
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case isRateLimitError(err):
		return ErrModelRateLimited
	default:
		return ErrModelFailed
	}
}

// isRateLimitError checks if the error is an upstream rate limit or quota error
func isRateLimitError(err error) bool {
	if errors.Is(err, errPacingBackoff) {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode == http.StatusTooManyRequests || anthropicErr.StatusCode == 529
	}
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return openaiErr.StatusCode == http.StatusTooManyRequests
	}
	// Check for gRPC ResourceExhausted status
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "ResourceExhausted") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota")
}
