// Package cover looks up a book cover image by ISBN on an Open Library style
// covers host.
package cover

import (
	"context"
	"errors"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"fiche-livre/backend/internal/model"
	"fiche-livre/backend/internal/sanitize"
)

// DefaultBaseURL is the public Open Library covers host.
const DefaultBaseURL = "https://covers.openlibrary.org"

var (
	ErrInvalidISBN         = errors.New("cover: invalid ISBN")
	ErrNotFound            = errors.New("cover: not found")
	ErrUpstreamTimeout     = errors.New("cover: upstream timed out")
	ErrUpstreamUnavailable = errors.New("cover: upstream unavailable")
)

// Service checks covers on the covers host.
type Service struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewService creates a Service. Redirects are never followed: a redirect
// answers NotFound.
func NewService(baseURL string, timeout time.Duration) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
	}
}

// CoverURL returns the large cover URL for an already validated ISBN.
// default=false makes the host answer 404 instead of a blank placeholder
// when it has no cover.
func (s *Service) CoverURL(isbn string) string {
	return s.baseURL + "/b/isbn/" + isbn + "-L.jpg?default=false"
}

// Lookup validates rawISBN and checks that the host serves an image for it.
// No request is made for an invalid ISBN.
func (s *Service) Lookup(ctx context.Context, rawISBN string) (model.CoverLookupResult, error) {
	isbn := sanitize.NormalizeISBN(rawISBN)
	if !sanitize.IsValidISBN(isbn) {
		return model.CoverLookupResult{}, ErrInvalidISBN
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url := s.CoverURL(isbn)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		log.Printf("[COVER] Failed to build request: %v", err)
		return model.CoverLookupResult{}, ErrUpstreamUnavailable
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Printf("[COVER] HEAD %s timed out after %v", isbn, s.timeout)
			return model.CoverLookupResult{}, ErrUpstreamTimeout
		}
		log.Printf("[COVER] HEAD %s failed: %v", isbn, err)
		return model.CoverLookupResult{}, ErrUpstreamUnavailable
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK || !isImage(resp.Header.Get("Content-Type")) {
		log.Printf("[COVER] No cover for %s (status=%d type=%q)", isbn, resp.StatusCode, resp.Header.Get("Content-Type"))
		return model.CoverLookupResult{}, ErrNotFound
	}
	return model.CoverLookupResult{ThumbnailURL: url}, nil
}

func isImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mediaType, "image/")
}
