package validation

import (
	"context"
	"log"
	"strings"
	"unicode"

	"fiche-livre/backend/internal/model"
)

// Character ceilings the prompts ask the model to respect.
const (
	MaxMetaLength     = 160
	MaxCritiqueLength = 700
)

// LengthValidator clamps fields whose prompt sets a hard character ceiling.
type LengthValidator struct {
	meta     int
	critique int
}

// NewLengthValidator creates a new LengthValidator
func NewLengthValidator() *LengthValidator {
	return &LengthValidator{meta: MaxMetaLength, critique: MaxCritiqueLength}
}

// Name returns the validator name
func (v *LengthValidator) Name() string {
	return "LengthValidator"
}

// Validate clamps the meta description and the critique at a word boundary.
func (v *LengthValidator) Validate(ctx context.Context, input ValidationInput) ValidationResult {
	corrected := input.Result
	changed := false

	switch input.Mode {
	case model.ModeProductSheet:
		changed = clampField(&corrected.MetaText, v.meta)
	case model.ModeCritique:
		changed = clampField(&corrected.CritiqueText, v.critique)
	}

	if !changed {
		return OK()
	}
	log.Printf("[%s] Clamped %s output", v.Name(), input.Mode)
	return FailWithCorrection("output over length ceiling", corrected)
}

func clampField(field *string, max int) bool {
	if len([]rune(*field)) <= max {
		return false
	}
	*field = ClampWords(*field, max)
	return true
}

// ClampWords shortens s to at most max runes, cutting at the last space when
// there is one in the second half of the kept text, and ending with "…".
func ClampWords(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}

	kept := runes[:max-1]
	if cut := lastSpace(kept); cut > len(kept)/2 {
		kept = kept[:cut]
	}
	trimmed := strings.TrimRightFunc(string(kept), func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == ':'
	})
	return trimmed + "…"
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}
