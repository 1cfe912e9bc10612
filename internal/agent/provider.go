package agent

import (
	"context"
	"fmt"
	"log"

	"fiche-livre/backend/internal/agent/deps"
	"fiche-livre/backend/internal/config"
)

// NewLLMClient builds the paced completion client for cfg. It returns a nil
// client and no error when no credential is configured.
func NewLLMClient(ctx context.Context, cfg config.LLMConfig) (deps.LLMClient, error) {
	if cfg.APIKey == "" {
		log.Printf("[WARN] No %s API key configured, generation is disabled", cfg.Provider)
		return nil, nil
	}

	var client deps.LLMClient
	switch cfg.Provider {
	case config.ProviderGemini:
		gemini, err := NewGeminiLLMClientFromKey(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		client = gemini
	case config.ProviderAnthropic:
		client = NewAnthropicLLMClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case config.ProviderOpenAI:
		client = NewOpenAILLMClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}

	log.Printf("[INFO] Using %s model %s (%.1f req/s)", cfg.Provider, cfg.Model, cfg.RequestsPerSecond)
	return NewPacedLLMClient(client, cfg.RequestsPerSecond, cfg.Burst), nil
}
