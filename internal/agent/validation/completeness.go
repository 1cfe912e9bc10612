package validation

import (
	"context"
	"strings"
)

// CompletenessValidator asks for a redo when every field of the mode is empty,
// usually because the model ignored the section format.
type CompletenessValidator struct{}

// NewCompletenessValidator creates a new CompletenessValidator
func NewCompletenessValidator() *CompletenessValidator {
	return &CompletenessValidator{}
}

// Name returns the validator name
func (v *CompletenessValidator) Name() string {
	return "CompletenessValidator"
}

// Validate fails when nothing usable was produced.
func (v *CompletenessValidator) Validate(ctx context.Context, input ValidationInput) ValidationResult {
	result := input.Result
	for _, field := range fields(input.Mode, &result) {
		if strings.TrimSpace(*field) != "" {
			return OK()
		}
	}
	return Fail("no section could be read from the completion")
}
