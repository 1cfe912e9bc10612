package validation

import (
	"context"
	"log"
	"regexp"
	"strings"

	"fiche-livre/backend/internal/agent/prompt"
)

// PromptLeakValidator removes prompt scaffolding the model echoed back: stray
// section markers, the "[contenu]" placeholder, quote fences and template
// headings.
type PromptLeakValidator struct {
	linePatterns []*regexp.Regexp
	inline       []string
}

// NewPromptLeakValidator creates a new PromptLeakValidator
func NewPromptLeakValidator() *PromptLeakValidator {
	var patterns []*regexp.Regexp
	for _, m := range prompt.Markers() {
		name := regexp.QuoteMeta(strings.TrimSuffix(m, ":"))
		patterns = append(patterns, regexp.MustCompile(`(?mi)^[\t ]*[*#]*[\t ]*`+name+`[\t ]*\**[\t ]*:[\t ]*\**[\t ]*$`))
	}
	patterns = append(patterns,
		regexp.MustCompile(`(?mi)^[\t ]*(?:\d\.[\t ]*)?(?:FICHE PRODUIT|META DESCRIPTION SEO|TEXTE POUR NEWSLETTER)[\t ]*:?[\t ]*$`),
		regexp.MustCompile(`(?m)^[\t ]*"""[\t ]*$`),
	)

	return &PromptLeakValidator{
		linePatterns: patterns,
		inline:       []string{"[contenu]", "[Contenu]"},
	}
}

// Name returns the validator name
func (v *PromptLeakValidator) Name() string {
	return "PromptLeakValidator"
}

// Validate strips leaked scaffolding from every field of the mode.
func (v *PromptLeakValidator) Validate(ctx context.Context, input ValidationInput) ValidationResult {
	corrected := input.Result
	changed := false

	for name, field := range fields(input.Mode, &corrected) {
		cleaned := v.clean(*field)
		if cleaned != *field {
			log.Printf("[%s] Stripped scaffolding from %s: %s", v.Name(), name, truncateForLog(*field, 50))
			*field = cleaned
			changed = true
		}
	}

	if !changed {
		return OK()
	}
	return FailWithCorrection("prompt scaffolding echoed in output", corrected)
}

var blankLines = regexp.MustCompile(`\n{3,}`)

func (v *PromptLeakValidator) clean(text string) string {
	out := text
	for _, p := range v.linePatterns {
		out = p.ReplaceAllString(out, "")
	}
	for _, s := range v.inline {
		out = strings.ReplaceAll(out, s, "")
	}
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
