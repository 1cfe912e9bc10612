package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fiche-livre/backend/internal/agent"
	"fiche-livre/backend/internal/agent/deps"
	"fiche-livre/backend/internal/cover"
	"fiche-livre/backend/internal/middleware"
	"fiche-livre/backend/internal/ocr"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const markedCompletion = "FICHE:\nUne fiche sobre.\n\nMETA:\nRoman, mer.\n\nNEWSLETTER:\nCe mois-ci, un classique."

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01}

// recordingLLM answers every call with reply and keeps the prompts.
type recordingLLM struct {
	mu      sync.Mutex
	prompts []string
	reply   string
}

func (f *recordingLLM) GenerateContent(_ context.Context, prompt string, _ float32, _ int32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, nil
}

func (f *recordingLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type stubEngine struct {
	calls int32
	text  string
}

func (e *stubEngine) Recognize(context.Context, string) (string, error) {
	atomic.AddInt32(&e.calls, 1)
	return e.text, nil
}

type testServer struct {
	router *gin.Engine
	llm    *recordingLLM
	engine *stubEngine
}

type serverOption func(*Deps, *Guards)

func withGuards(g Guards) serverOption {
	return func(_ *Deps, guards *Guards) { *guards = g }
}

func withoutModel() serverOption {
	return func(d *Deps, _ *Guards) { d.Generator = agent.NewCopywriter(nil, time.Second) }
}

func withCoverHost(url string) serverOption {
	return func(d *Deps, _ *Guards) { d.Covers = cover.NewService(url, time.Second) }
}

func withQuota(q QuotaReporter) serverOption {
	return func(d *Deps, _ *Guards) { d.Quota = q }
}

func withMaxUpload(n int64) serverOption {
	return func(d *Deps, _ *Guards) { d.MaxUploadBytes = n }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	llm := &recordingLLM{reply: markedCompletion}
	engine := &stubEngine{text: "Un vieux pêcheur cubain affronte un espadon géant."}

	var client deps.LLMClient = llm
	d := Deps{
		Extractor:    ocr.NewExtractor(engine, ocr.Options{Timeout: time.Second, TempDir: t.TempDir()}),
		Generator:    agent.NewCopywriter(client, time.Minute),
		Covers:       cover.NewService("http://127.0.0.1:1", time.Second),
		OCRAvailable: func() bool { return true },
	}
	var g Guards
	for _, opt := range opts {
		opt(&d, &g)
	}

	r := gin.New()
	New(d).RegisterRoutes(r, g)
	return &testServer{router: r, llm: llm, engine: engine}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, "/api/generate", &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, fields map[string]string, image []byte, imageType string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {`form-data; name="coverImage"; filename="cover"`},
			"Content-Type":        {imageType},
		})
		if err != nil {
			t.Fatal(err)
		}
		part.Write(image)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/generate", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON (%v): %s", err, w.Body.String())
	}
	return body
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d: %s", w.Code, status, w.Body.String())
	}
	body := decode(t, w)
	if body["code"] != code {
		t.Errorf("code = %v, want %s", body["code"], code)
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Error("error message is empty")
	}
}

func TestGenerateProductSheetJSON(t *testing.T) {
	s := newTestServer(t)

	w := s.do(jsonRequest(t, map[string]any{
		"mode":   "fiche",
		"title":  "Le Vieil Homme et la Mer",
		"author": "Ernest Hemingway",
		"input":  "Santiago, vieux pêcheur, part seul en mer.",
	}))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	for _, key := range []string{"ficheText", "metaText", "newsletterText"} {
		if s, _ := body[key].(string); s == "" {
			t.Errorf("%s is empty", key)
		}
	}
	for _, key := range []string{"translationText", "critiqueText"} {
		v, present := body[key]
		if !present || v != "" {
			t.Errorf("%s = %v (present=%v), want empty string", key, v, present)
		}
	}
	if !strings.Contains(s.llm.prompts[0], "Santiago") {
		t.Error("source text did not reach the prompt")
	}
}

func TestGenerateMissingAuthorMakesNoModelCall(t *testing.T) {
	s := newTestServer(t)

	w := s.do(jsonRequest(t, map[string]any{
		"mode":  "fiche",
		"title": "Titre",
		"input": "Un texte.",
	}))

	assertError(t, w, http.StatusBadRequest, "MISSING_AUTHOR")
	if n := s.llm.calls(); n != 0 {
		t.Errorf("model was called %d times", n)
	}
}

func TestGenerateValidationOrder(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{"everything missing", map[string]any{}, "MISSING_AUTHOR"},
		{"title missing", map[string]any{"author": "A", "input": "T"}, "MISSING_TITLE"},
		{"text missing", map[string]any{"author": "A", "title": "T"}, "MISSING_TEXT"},
		{"blank after cleanup", map[string]any{"author": "\u0000 ", "title": "T", "input": "x"}, "MISSING_AUTHOR"},
		{"non-string author", map[string]any{"author": 42, "title": "T", "input": "x"}, "MISSING_AUTHOR"},
		{"unknown mode", map[string]any{"mode": "poème", "author": "A", "title": "T", "input": "x"}, "INVALID_MODE"},
		{"author before mode", map[string]any{"mode": "poème", "title": "T", "input": "x"}, "MISSING_AUTHOR"},
		{"title before mode", map[string]any{"mode": "poème", "author": "A", "input": "x"}, "MISSING_TITLE"},
		{"mode before text", map[string]any{"mode": "poème", "author": "A", "title": "T"}, "INVALID_MODE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			assertError(t, s.do(jsonRequest(t, tt.body)), http.StatusBadRequest, tt.code)
			if s.llm.calls() != 0 {
				t.Error("model must not be called")
			}
		})
	}
}

func TestGenerateAcceptsTextSourceAlias(t *testing.T) {
	s := newTestServer(t)
	s.llm.reply = "  Un livre lumineux.\n"
	w := s.do(jsonRequest(t, map[string]any{
		"mode": "critique", "title": "T", "author": "A", "textSource": "Un récit bref.",
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["critiqueText"]; got != "Un livre lumineux." {
		t.Errorf("critiqueText = %v", got)
	}
}

func TestGenerateMalformedJSON(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []string{"{", "[]", "null", "42"} {
		assertError(t, s.do(jsonRequest(t, body)), http.StatusBadRequest, "INVALID_BODY")
	}
}

func TestGenerateNotConfigured(t *testing.T) {
	s := newTestServer(t, withoutModel())
	w := s.do(jsonRequest(t, map[string]any{"title": "T", "author": "A", "input": "x"}))
	assertError(t, w, http.StatusServiceUnavailable, "MODEL_NOT_CONFIGURED")
}

func TestGenerateMultipartImageUsesOCR(t *testing.T) {
	s := newTestServer(t)

	w := s.do(multipartRequest(t, map[string]string{
		"mode": "fiche", "title": "Le Vieil Homme et la Mer", "author": "Hemingway",
		"textSource": "texte tapé ignoré",
	}, jpegBytes, "image/jpeg"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if atomic.LoadInt32(&s.engine.calls) != 1 {
		t.Fatal("OCR engine was not called")
	}
	prompt := s.llm.prompts[0]
	if !strings.Contains(prompt, "espadon géant") {
		t.Error("extracted text did not reach the prompt")
	}
	if strings.Contains(prompt, "texte tapé ignoré") {
		t.Error("typed text must not be used alongside an image")
	}
}

func TestGenerateMultipartTextOnly(t *testing.T) {
	s := newTestServer(t)
	w := s.do(multipartRequest(t, map[string]string{
		"mode": "traduction", "title": "T", "author": "A", "textSource": "Il était une fois.",
	}, nil, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if atomic.LoadInt32(&s.engine.calls) != 0 {
		t.Error("OCR engine should not run without an image")
	}
}

func TestGenerateMultipartRejectsImages(t *testing.T) {
	fields := map[string]string{"title": "T", "author": "A"}
	tests := []struct {
		name      string
		data      []byte
		declared  string
		maxUpload int64
		status    int
		code      string
	}{
		{"declared gif", jpegBytes, "image/gif", 0, http.StatusUnsupportedMediaType, "UNSUPPORTED_IMAGE"},
		{"declared pdf", jpegBytes, "application/pdf", 0, http.StatusUnsupportedMediaType, "UNSUPPORTED_IMAGE"},
		{"lying about type", []byte("%PDF-1.7 not really a photo"), "image/png", 0, http.StatusBadRequest, "INVALID_IMAGE"},
		{"empty file", []byte{}, "image/jpeg", 0, http.StatusBadRequest, "INVALID_IMAGE"},
		{"too large", append(append([]byte{}, jpegBytes...), make([]byte, 4096)...), "image/jpeg", 1024, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []serverOption
			if tt.maxUpload > 0 {
				opts = append(opts, withMaxUpload(tt.maxUpload))
			}
			s := newTestServer(t, opts...)
			assertError(t, s.do(multipartRequest(t, fields, tt.data, tt.declared)), tt.status, tt.code)
			if atomic.LoadInt32(&s.engine.calls) != 0 {
				t.Error("OCR engine must not run for a rejected upload")
			}
		})
	}
}

func TestGenerateRateLimited(t *testing.T) {
	limiter := middleware.NewFixedWindowLimiter(1, time.Minute, 100)
	s := newTestServer(t, withGuards(Guards{
		Generate: []gin.HandlerFunc{middleware.RateLimitMiddleware(limiter, nil)},
	}))
	body := map[string]any{"title": "T", "author": "A", "input": "x"}

	if w := s.do(jsonRequest(t, body)); w.Code != http.StatusOK {
		t.Fatalf("first request: %d %s", w.Code, w.Body.String())
	}
	w := s.do(jsonRequest(t, body))
	assertError(t, w, http.StatusTooManyRequests, "RATE_LIMITED")
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q", got)
	}
	if s.llm.calls() != 1 {
		t.Errorf("model calls = %d, want 1", s.llm.calls())
	}
}

func TestCoverLookup(t *testing.T) {
	var hits int32
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if strings.Contains(r.URL.Path, "2070360245") {
			w.Header().Set("Content-Type", "image/jpeg")
			return
		}
		// Open Library answers unknown covers with a placeholder page.
		w.Header().Set("Content-Type", "text/html")
	}))
	defer host.Close()
	s := newTestServer(t, withCoverHost(host.URL))

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/cover-lookup?isbn=2-07-036024-5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["thumbnailUrl"]; got != host.URL+"/b/isbn/2070360245-L.jpg?default=false" {
		t.Errorf("thumbnailUrl = %v", got)
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=3600") {
		t.Errorf("Cache-Control = %q", cc)
	}

	assertError(t, s.do(httptest.NewRequest(http.MethodGet, "/api/cover?isbn=9780306406157", nil)), http.StatusNotFound, "COVER_NOT_FOUND")

	before := atomic.LoadInt32(&hits)
	assertError(t, s.do(httptest.NewRequest(http.MethodGet, "/api/cover-lookup?isbn=2070360247", nil)), http.StatusBadRequest, "INVALID_ISBN")
	assertError(t, s.do(httptest.NewRequest(http.MethodGet, "/api/cover-lookup", nil)), http.StatusBadRequest, "MISSING_ISBN")
	if atomic.LoadInt32(&hits) != before {
		t.Error("invalid ISBNs must not reach the cover host")
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || decode(t, w)["status"] != "healthy" {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}

	if _, ok := decode(t, w)["dailyRemaining"]; ok {
		t.Error("dailyRemaining must be omitted without a quota")
	}

	degraded := newTestServer(t, withoutModel())
	if w := degraded.do(httptest.NewRequest(http.MethodGet, "/ready", nil)); w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready without model = %d", w.Code)
	}
}

func TestHealthReportsDailyRemaining(t *testing.T) {
	quota := middleware.NewDailyQuota(2, "UTC")
	guard := middleware.RateLimitMiddleware(middleware.NewFixedWindowLimiter(10, time.Minute, 100), quota)
	s := newTestServer(t, withQuota(quota), withGuards(Guards{Generate: []gin.HandlerFunc{guard}}))

	if w := s.do(jsonRequest(t, map[string]any{"title": "T", "author": "A", "input": "x"})); w.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", w.Code, w.Body.String())
	}
	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := decode(t, w)["dailyRemaining"]; got != float64(1) {
		t.Errorf("dailyRemaining = %v, want 1", got)
	}

	disabled := newTestServer(t, withQuota(middleware.NewDailyQuota(0, "UTC")))
	w = disabled.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if _, ok := decode(t, w)["dailyRemaining"]; ok {
		t.Error("dailyRemaining must be omitted when the quota is disabled")
	}
}

func TestErrorTableHasNoInternalFallbacks(t *testing.T) {
	sentinels := []error{
		ErrMalformedBody, ErrPayloadTooLarge, ErrUnsupportedImage, ErrInvalidMode,
		ErrMissingAuthor, ErrMissingTitle, ErrMissingText, ErrNoTextInImage, ErrMissingISBN, ErrOCRUnavailable,
		ocr.ErrEmptyBuffer, ocr.ErrTooLarge, ocr.ErrInvalidImage, ocr.ErrTimeout, ocr.ErrExtractionFailed,
		agent.ErrNotConfigured, agent.ErrModelTimeout, agent.ErrModelRateLimited, agent.ErrModelFailed,
		cover.ErrInvalidISBN, cover.ErrNotFound, cover.ErrUpstreamTimeout, cover.ErrUpstreamUnavailable,
	}
	for _, err := range sentinels {
		e, known := lookupError(err)
		if !known || e.status == http.StatusInternalServerError {
			t.Errorf("%v maps to %d (known=%v)", err, e.status, known)
		}
	}
	if _, known := lookupError(errors.New("surprise")); known {
		t.Error("unknown errors must fall through to the generic 500")
	}
}
