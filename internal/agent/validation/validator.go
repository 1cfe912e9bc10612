package validation

import (
	"context"

	"fiche-livre/backend/internal/model"
)

// ValidationInput contains all data needed for validation
type ValidationInput struct {
	Mode   model.Mode
	Result model.GenerationResult
}

// ValidationResult is the outcome of a validation
type ValidationResult struct {
	IsValid   bool
	Reason    string
	Corrected *model.GenerationResult // Non-nil if correction is available
	NeedsRedo bool                    // True if the completion should be requested again
}

// OK returns a successful validation result
func OK() ValidationResult {
	return ValidationResult{IsValid: true}
}

// Fail returns a failed validation result
func Fail(reason string) ValidationResult {
	return ValidationResult{IsValid: false, Reason: reason, NeedsRedo: true}
}

// FailWithCorrection returns a failed validation result with a corrected result
func FailWithCorrection(reason string, corrected model.GenerationResult) ValidationResult {
	return ValidationResult{IsValid: false, Reason: reason, Corrected: &corrected}
}

// Validator is the interface for validation rules
type Validator interface {
	// Name returns the validator's name for logging
	Name() string
	// Validate checks the result and returns a validation result
	Validate(ctx context.Context, input ValidationInput) ValidationResult
}

// fields returns pointers to the result fields the mode fills in.
func fields(mode model.Mode, r *model.GenerationResult) map[string]*string {
	switch mode {
	case model.ModeCritique:
		return map[string]*string{"critique": &r.CritiqueText}
	case model.ModeTranslation:
		return map[string]*string{"translation": &r.TranslationText}
	default:
		return map[string]*string{
			"fiche":      &r.FicheText,
			"meta":       &r.MetaText,
			"newsletter": &r.NewsletterText,
		}
	}
}

// truncateForLog truncates a string for logging purposes
func truncateForLog(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}
