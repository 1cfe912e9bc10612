package prompt

import (
	"fmt"
	"strings"

	"fiche-livre/backend/internal/model"
	"fiche-livre/backend/internal/sanitize"
)

// Builder constructs prompts for the copywriting model
type Builder struct{}

// NewBuilder creates a new prompt builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Markers returns the product-sheet section markers in output order.
func Markers() []string {
	return []string{MarkerFiche, MarkerMeta, MarkerNewsletter}
}

// Build returns the single prompt for mode. The source text is neutralized so
// it cannot close the quoted block or forge a section marker.
func (b *Builder) Build(mode model.Mode, text, title, author string) string {
	source := sanitize.PromptSource(strings.TrimSpace(text), Markers()...)

	switch mode {
	case model.ModeCritique:
		return fmt.Sprintf(CritiqueTemplate, bookTitle(title), bookAuthor(author), source)
	case model.ModeTranslation:
		return fmt.Sprintf(TranslationTemplate, source)
	default:
		return fmt.Sprintf(ProductSheetTemplate, bookTitle(title), bookAuthor(author), source)
	}
}

func bookTitle(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return `"` + t + `"`
	}
	return UnknownTitle
}

func bookAuthor(author string) string {
	if a := strings.TrimSpace(author); a != "" {
		return a
	}
	return UnknownAuthor
}
