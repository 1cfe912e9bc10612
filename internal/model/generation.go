package model

import "strings"

// Mode selects which kind of copy is generated.
type Mode string

const (
	ModeProductSheet Mode = "fiche"
	ModeCritique     Mode = "critique"
	ModeTranslation  Mode = "traduction"
)

// ParseMode accepts the French mode names used by the front-end and their
// English aliases. An empty value defaults to the product sheet.
func ParseMode(raw string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "fiche", "product-sheet", "product_sheet":
		return ModeProductSheet, true
	case "critique", "review":
		return ModeCritique, true
	case "traduction", "translation":
		return ModeTranslation, true
	default:
		return "", false
	}
}

// GenerationRequest is built once per POST /api/generate call and discarded
// after the response is written.
type GenerationRequest struct {
	Mode   Mode
	Title  string
	Author string
	// SourceText is either the typed text or the text extracted from
	// CoverImage, never both.
	SourceText string
	CoverImage []byte
}

// HasImage reports whether the request carries an uploaded cover.
func (r *GenerationRequest) HasImage() bool {
	return len(r.CoverImage) > 0
}

// GenerationResult holds every generated field. Fields that do not belong to
// the active mode are empty strings, never omitted.
type GenerationResult struct {
	FicheText       string `json:"ficheText"`
	MetaText        string `json:"metaText"`
	NewsletterText  string `json:"newsletterText"`
	CritiqueText    string `json:"critiqueText"`
	TranslationText string `json:"translationText"`
}

// CoverLookupResult is the body returned by a successful cover lookup.
type CoverLookupResult struct {
	ThumbnailURL string `json:"thumbnailUrl"`
}
