package validation

import (
	"context"
	"log"
)

// Outcome is what the pipeline hands back to the caller.
type Outcome struct {
	Input     ValidationInput
	NeedsRedo bool
	Reason    string
}

// Pipeline runs multiple validators in sequence
type Pipeline struct {
	validators []Validator
}

// NewPipeline creates a new validation pipeline
func NewPipeline(validators ...Validator) *Pipeline {
	return &Pipeline{validators: validators}
}

// DefaultPipeline strips leaked scaffolding, enforces length ceilings, then
// checks that something usable is left.
func DefaultPipeline() *Pipeline {
	return NewPipeline(
		NewPromptLeakValidator(),
		NewLengthValidator(),
		NewCompletenessValidator(),
	)
}

// Validate runs all validators. Corrections are chained: each validator sees
// the output of the previous one. The first validator asking for a redo stops
// the run.
func (p *Pipeline) Validate(ctx context.Context, input ValidationInput) Outcome {
	for _, v := range p.validators {
		result := v.Validate(ctx, input)

		if result.IsValid {
			continue
		}

		log.Printf("[Pipeline] %s: FAIL - %s", v.Name(), result.Reason)

		if result.Corrected != nil {
			input.Result = *result.Corrected
			continue
		}

		if result.NeedsRedo {
			return Outcome{Input: input, NeedsRedo: true, Reason: result.Reason}
		}
	}

	return Outcome{Input: input}
}
