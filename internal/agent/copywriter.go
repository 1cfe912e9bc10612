package agent

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"fiche-livre/backend/internal/agent/deps"
	"fiche-livre/backend/internal/agent/prompt"
	"fiche-livre/backend/internal/agent/response"
	"fiche-livre/backend/internal/agent/validation"
	"fiche-livre/backend/internal/model"
)

const (
	// DefaultTimeout bounds one generation, retry included.
	DefaultTimeout = 25 * time.Second
	// minRetryBudget is the time that must remain before a second attempt.
	minRetryBudget = 8 * time.Second
)

// generationSettings holds per-mode sampling parameters.
type generationSettings struct {
	temperature     float32
	maxOutputTokens int32
}

var settingsByMode = map[model.Mode]generationSettings{
	model.ModeProductSheet: {temperature: 0.6, maxOutputTokens: 1200},
	model.ModeCritique:     {temperature: 0.7, maxOutputTokens: 500},
	model.ModeTranslation:  {temperature: 0.3, maxOutputTokens: 2000},
}

// Copywriter turns a validated request into generated copy with a single
// completion call, retried once when the budget allows.
type Copywriter struct {
	client        deps.LLMClient
	promptBuilder *prompt.Builder
	pipeline      *validation.Pipeline
	timeout       time.Duration
}

// NewCopywriter creates a Copywriter. A nil client is allowed: Generate then
// reports ErrNotConfigured.
func NewCopywriter(client deps.LLMClient, timeout time.Duration) *Copywriter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Copywriter{
		client:        client,
		promptBuilder: prompt.NewBuilder(),
		pipeline:      validation.DefaultPipeline(),
		timeout:       timeout,
	}
}

// Configured reports whether a completion credential is available.
func (c *Copywriter) Configured() bool {
	return c != nil && c.client != nil
}

// Generate builds the prompt for req, calls the model and shapes the
// completion. Errors belong to the closed set declared in errors.go.
func (c *Copywriter) Generate(ctx context.Context, req model.GenerationRequest) (model.GenerationResult, error) {
	if !c.Configured() {
		return model.GenerationResult{}, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	settings, ok := settingsByMode[req.Mode]
	if !ok {
		settings = settingsByMode[model.ModeProductSheet]
	}
	p := c.promptBuilder.Build(req.Mode, req.SourceText, req.Title, req.Author)
	log.Printf("[GENERATE] mode=%s prompt=%d chars", req.Mode, len([]rune(p)))

	var last model.GenerationResult
	for attempt := 1; attempt <= 2; attempt++ {
		start := time.Now()
		completion, err := c.client.GenerateContent(ctx, p, settings.temperature, settings.maxOutputTokens)
		log.Printf("[PERF] Completion attempt %d took %v", attempt, time.Since(start).Round(time.Millisecond))

		if err == nil && strings.TrimSpace(completion) == "" {
			err = errEmptyCompletion
		}
		if err != nil {
			classified := classify(ctx, err)
			log.Printf("[GENERATE] Attempt %d failed: %v", attempt, err)
			if errors.Is(classified, ErrModelFailed) && attempt == 1 && c.canRetry(ctx) {
				continue
			}
			return model.GenerationResult{}, classified
		}

		outcome := c.pipeline.Validate(ctx, validation.ValidationInput{
			Mode:   req.Mode,
			Result: response.Parse(req.Mode, completion),
		})
		last = outcome.Input.Result
		if !outcome.NeedsRedo {
			return last, nil
		}
		if attempt == 1 && c.canRetry(ctx) {
			log.Printf("[GENERATE] Retrying: %s", outcome.Reason)
			continue
		}
		break
	}

	log.Printf("[WARN] Returning a partially populated %s result", req.Mode)
	return last, nil
}

var errEmptyCompletion = errors.New("empty completion")

func (c *Copywriter) canRetry(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	return ok && time.Until(deadline) > minRetryBudget
}
