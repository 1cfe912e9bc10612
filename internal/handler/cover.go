package handler

import (
	"net/http"
	"strings"

	"fiche-livre/backend/internal/cover"
	"fiche-livre/backend/internal/sanitize"

	"github.com/gin-gonic/gin"
)

// coverCacheControl lets browsers and proxies keep a found cover for an hour.
const coverCacheControl = "public, max-age=3600"

// HandleCoverLookup serves GET /api/cover-lookup?isbn=...
func (h *Handler) HandleCoverLookup(c *gin.Context) {
	isbn := c.Query("isbn")
	if strings.TrimSpace(isbn) == "" {
		respondError(c, ErrMissingISBN)
		return
	}
	// Anything much longer than a hyphenated ISBN-13 is not worth parsing.
	if len(isbn) > 4*sanitize.MaxISBNLength {
		respondError(c, cover.ErrInvalidISBN)
		return
	}

	result, err := h.covers.Lookup(c.Request.Context(), isbn)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", coverCacheControl)
	c.JSON(http.StatusOK, result)
}
