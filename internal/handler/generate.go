package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"fiche-livre/backend/internal/agent"
	"fiche-livre/backend/internal/model"
	"fiche-livre/backend/internal/ocr"
	"fiche-livre/backend/internal/sanitize"

	"github.com/gin-gonic/gin"
)

const (
	// maxJSONBody bounds a JSON generation request.
	maxJSONBody = 256 * 1024
	// multipartSlack covers the text fields sent alongside the image.
	multipartSlack = 256 * 1024
	// multipartMemory is kept in memory before parts spill to disk.
	multipartMemory = 8 << 20
)

// rawRequest is the untrusted body, before validation.
type rawRequest struct {
	mode       string
	title      string
	author     string
	textSource string
	image      []byte
}

// HandleGenerate serves POST /api/generate.
func (h *Handler) HandleGenerate(c *gin.Context) {
	start := time.Now()

	raw, err := h.readBody(c)
	if err != nil {
		respondError(c, err)
		return
	}

	req, err := h.resolve(c, raw)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.generator.Configured() {
		log.Printf("[GENERATE] Rejected: no model credential configured")
		respondError(c, agent.ErrNotConfigured)
		return
	}

	genStart := time.Now()
	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		log.Printf("[PERF] Generation failed after %v: %v", time.Since(genStart).Round(time.Millisecond), err)
		respondError(c, err)
		return
	}

	log.Printf("[PERF] Generate mode=%s completed in %v (model: %v)", req.Mode,
		time.Since(start).Round(time.Millisecond), time.Since(genStart).Round(time.Millisecond))
	c.JSON(http.StatusOK, result)
}

// resolve validates raw in order: author, title, mode, then source text,
// running OCR when an image was sent. The mode is checked before OCR so a
// bad request never costs an engine slot. The image's text replaces any
// typed text.
func (h *Handler) resolve(c *gin.Context, raw rawRequest) (model.GenerationRequest, error) {
	req := model.GenerationRequest{
		Title:      sanitize.Field(raw.title, sanitize.MaxTitleLength),
		Author:     sanitize.Field(raw.author, sanitize.MaxAuthorLength),
		CoverImage: raw.image,
	}
	if req.Author == "" {
		return req, ErrMissingAuthor
	}
	if req.Title == "" {
		return req, ErrMissingTitle
	}
	mode, ok := model.ParseMode(raw.mode)
	if !ok {
		return req, ErrInvalidMode
	}
	req.Mode = mode

	if req.HasImage() {
		if h.extractor == nil || !h.ocrAvailable() {
			return req, ErrOCRUnavailable
		}
		ocrStart := time.Now()
		text, err := h.extractor.ExtractText(c.Request.Context(), req.CoverImage)
		if err != nil {
			return req, err
		}
		log.Printf("[OCR] Extracted %d chars in %v", len([]rune(text)), time.Since(ocrStart).Round(time.Millisecond))
		if text == "" {
			return req, ErrNoTextInImage
		}
		req.SourceText = sanitize.Text(text, sanitize.MaxSourceLength)
		req.CoverImage = nil
	} else {
		req.SourceText = sanitize.Text(raw.textSource, sanitize.MaxSourceLength)
	}

	if req.SourceText == "" {
		return req, ErrMissingText
	}
	return req, nil
}

func (h *Handler) readBody(c *gin.Context) (rawRequest, error) {
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		return h.readMultipart(c)
	}
	return readJSON(c)
}

func (h *Handler) readMultipart(c *gin.Context) (rawRequest, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartSlack)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		return rawRequest{}, bodyError(err)
	}

	raw := rawRequest{
		mode:       c.PostForm("mode"),
		title:      c.PostForm("title"),
		author:     c.PostForm("author"),
		textSource: c.PostForm("textSource"),
	}

	header, err := c.FormFile("coverImage")
	if errors.Is(err, http.ErrMissingFile) {
		return raw, nil
	}
	if err != nil {
		return rawRequest{}, bodyError(err)
	}

	// Size and declared type are checked before any byte is read.
	if header.Size == 0 {
		return rawRequest{}, ocr.ErrEmptyBuffer
	}
	if header.Size > h.maxUpload {
		return rawRequest{}, ErrPayloadTooLarge
	}
	declared := header.Header.Get("Content-Type")
	if !sanitize.IsAllowedImageType(declared) {
		log.Printf("[SECURITY] Rejected upload with declared type %q", declared)
		return rawRequest{}, ErrUnsupportedImage
	}

	data, err := readPart(header, h.maxUpload)
	if err != nil {
		return rawRequest{}, err
	}
	raw.image = data
	return raw, nil
}

func readPart(header *multipart.FileHeader, max int64) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, bodyError(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, bodyError(err)
	}
	if int64(len(data)) > max {
		return nil, ErrPayloadTooLarge
	}
	return data, nil
}

// readJSON decodes any JSON object and keeps only the string-typed fields it
// knows. Fields of another type are treated as absent.
func readJSON(c *gin.Context) (rawRequest, error) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBody)

	var fields map[string]any
	if err := json.NewDecoder(body).Decode(&fields); err != nil {
		return rawRequest{}, bodyError(err)
	}
	if fields == nil {
		return rawRequest{}, ErrMalformedBody
	}

	text := stringField(fields, "input")
	if strings.TrimSpace(text) == "" {
		text = stringField(fields, "textSource")
	}
	return rawRequest{
		mode:       stringField(fields, "mode"),
		title:      stringField(fields, "title"),
		author:     stringField(fields, "author"),
		textSource: text,
	}, nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return ErrPayloadTooLarge
	}
	return ErrMalformedBody
}
