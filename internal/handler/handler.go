package handler

import (
	"context"

	"fiche-livre/backend/internal/model"
)

// TextExtractor reads the text printed on an uploaded cover.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Generator produces copy for a validated request.
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, req model.GenerationRequest) (model.GenerationResult, error)
}

// CoverFinder resolves an ISBN to a cover URL.
type CoverFinder interface {
	Lookup(ctx context.Context, rawISBN string) (model.CoverLookupResult, error)
}

// QuotaReporter reports how many generations are left today. A negative
// value means no daily quota is enforced.
type QuotaReporter interface {
	Remaining() int64
}

// Deps are the collaborators a Handler is built from.
type Deps struct {
	Extractor      TextExtractor
	Generator      Generator
	Covers         CoverFinder
	Quota          QuotaReporter
	MaxUploadBytes int64
	// OCRAvailable reports whether the OCR engine can run at all.
	OCRAvailable func() bool
}

// Handler serves the HTTP API.
type Handler struct {
	extractor    TextExtractor
	generator    Generator
	covers       CoverFinder
	quota        QuotaReporter
	maxUpload    int64
	ocrAvailable func() bool
}

// New creates a Handler.
func New(d Deps) *Handler {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 6 * 1024 * 1024
	}
	if d.OCRAvailable == nil {
		d.OCRAvailable = func() bool { return d.Extractor != nil }
	}
	return &Handler{
		extractor:    d.Extractor,
		generator:    d.Generator,
		covers:       d.Covers,
		quota:        d.Quota,
		maxUpload:    d.MaxUploadBytes,
		ocrAvailable: d.OCRAvailable,
	}
}
