// Package ocr turns an uploaded cover photo into plain text.
//
// Extraction is bounded three ways: input size, a wall-clock timeout and a
// process-wide FIFO gate on concurrent engine runs. The temporary image file
// handed to the engine is removed on every exit path.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"fiche-livre/backend/internal/sanitize"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Closed set of extraction failures. Handlers map these to HTTP statuses;
// engine details never cross this boundary.
var (
	ErrEmptyBuffer      = errors.New("ocr: empty buffer")
	ErrTooLarge         = errors.New("ocr: image too large")
	ErrInvalidImage     = errors.New("ocr: not a supported image")
	ErrTimeout          = errors.New("ocr: timed out")
	ErrExtractionFailed = errors.New("ocr: extraction failed")
)

// Engine recognizes text in an image file. Implementations should honour ctx
// cancellation where they can; the Extractor stops waiting either way.
type Engine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Options bounds an Extractor.
type Options struct {
	MaxBytes      int64
	MaxChars      int
	Timeout       time.Duration
	MaxConcurrent int64
	TempDir       string
}

// DefaultOptions returns the limits used in production.
func DefaultOptions() Options {
	return Options{
		MaxBytes:      6 * 1024 * 1024,
		MaxChars:      sanitize.MaxSourceLength,
		Timeout:       15 * time.Second,
		MaxConcurrent: 2,
		TempDir:       os.TempDir(),
	}
}

// Extractor runs an Engine under the configured limits.
type Extractor struct {
	engine Engine
	opts   Options
	slots  *semaphore.Weighted
	newID  func() string
}

// NewExtractor creates an Extractor. Zero-valued options fall back to
// DefaultOptions.
func NewExtractor(engine Engine, opts Options) *Extractor {
	def := DefaultOptions()
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = def.MaxChars
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = def.MaxConcurrent
	}
	if opts.TempDir == "" {
		opts.TempDir = def.TempDir
	}
	return &Extractor{
		engine: engine,
		opts:   opts,
		// semaphore.Weighted serves waiters strictly in arrival order.
		slots: semaphore.NewWeighted(opts.MaxConcurrent),
		newID: uuid.NewString,
	}
}

type recognition struct {
	text string
	err  error
}

// ExtractText validates data, runs the engine on a private temporary copy and
// returns cleaned text clamped to MaxChars. The timeout covers both waiting
// for a slot and the engine run.
func (e *Extractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyBuffer
	}
	if int64(len(data)) > e.opts.MaxBytes {
		return "", ErrTooLarge
	}
	if !sanitize.IsLikelyImage(data) {
		return "", ErrInvalidImage
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	queuedAt := time.Now()
	if err := e.slots.Acquire(ctx, 1); err != nil {
		return "", e.contextError(ctx, "waiting for a slot")
	}
	// The slot is released by the engine goroutine, so an abandoned run
	// still occupies it until the engine actually returns.
	handedOff := false
	defer func() {
		if !handedOff {
			e.slots.Release(1)
		}
	}()
	if wait := time.Since(queuedAt); wait > time.Second {
		log.Printf("[OCR] Waited %v for an engine slot", wait.Round(time.Millisecond))
	}

	path, err := e.writeTemp(data)
	if err != nil {
		log.Printf("[OCR] Failed to write temp file: %v", err)
		return "", ErrExtractionFailed
	}
	defer removeQuietly(path)

	done := make(chan recognition, 1)
	handedOff = true
	go func() {
		defer e.slots.Release(1)
		text, err := e.engine.Recognize(ctx, path)
		done <- recognition{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if ctx.Err() != nil {
				return "", e.contextError(ctx, "engine run")
			}
			log.Printf("[OCR] Engine failed: %v", r.err)
			return "", ErrExtractionFailed
		}
		return sanitize.Clamp(CleanText(r.text), e.opts.MaxChars), nil
	case <-ctx.Done():
		return "", e.contextError(ctx, "engine run")
	}
}

func (e *Extractor) contextError(ctx context.Context, stage string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Printf("[OCR] Timed out after %v while %s", e.opts.Timeout, stage)
		return ErrTimeout
	}
	return fmt.Errorf("%w: %v", ErrExtractionFailed, ctx.Err())
}

// writeTemp stores data under a random, non-guessable name readable only by
// the owner. O_EXCL guarantees the file is new.
func (e *Extractor) writeTemp(data []byte) (string, error) {
	name := "cover-" + e.newID() + sanitize.ImageExtension(data)
	path := filepath.Join(e.opts.TempDir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		removeQuietly(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		removeQuietly(path)
		return "", err
	}
	return path, nil
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[OCR] Failed to remove temp file: %v", err)
	}
}

var (
	hyphenBreak = regexp.MustCompile(`(\p{L})-[ \t]*\r?\n[ \t]*(\p{L})`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// CleanText joins words hyphenated across line breaks and collapses every run
// of whitespace, newlines included, into a single space.
func CleanText(raw string) string {
	text := hyphenBreak.ReplaceAllString(raw, "$1$2")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
