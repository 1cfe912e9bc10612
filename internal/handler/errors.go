package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"fiche-livre/backend/internal/agent"
	"fiche-livre/backend/internal/cover"
	"fiche-livre/backend/internal/middleware"
	"fiche-livre/backend/internal/ocr"

	"github.com/gin-gonic/gin"
)

// Request errors raised while reading and validating a body.
var (
	ErrMalformedBody    = errors.New("handler: malformed body")
	ErrPayloadTooLarge  = errors.New("handler: payload too large")
	ErrUnsupportedImage = errors.New("handler: unsupported image type")
	ErrInvalidMode      = errors.New("handler: unknown mode")
	ErrMissingAuthor    = errors.New("handler: author is required")
	ErrMissingTitle     = errors.New("handler: title is required")
	ErrMissingText      = errors.New("handler: source text is required")
	ErrNoTextInImage    = errors.New("handler: no text found in image")
	ErrMissingISBN      = errors.New("handler: isbn is required")
	ErrOCRUnavailable   = errors.New("handler: ocr engine unavailable")
)

type apiError struct {
	status  int
	code    string
	message string
}

// errorTable is the only place where failures become statuses and
// user-facing messages. First match wins.
var errorTable = []struct {
	target error
	apiError
}{
	{ErrMalformedBody, apiError{http.StatusBadRequest, "INVALID_BODY", "Requête illisible. Vérifiez le formulaire et réessayez."}},
	{ErrInvalidMode, apiError{http.StatusBadRequest, "INVALID_MODE", "Mode inconnu. Choisissez fiche, critique ou traduction."}},
	{ErrMissingAuthor, apiError{http.StatusBadRequest, "MISSING_AUTHOR", "Merci d'indiquer l'auteur du livre."}},
	{ErrMissingTitle, apiError{http.StatusBadRequest, "MISSING_TITLE", "Merci d'indiquer le titre du livre."}},
	{ErrMissingText, apiError{http.StatusBadRequest, "MISSING_TEXT", "Merci de fournir un texte ou une photo de la quatrième de couverture."}},
	{ErrMissingISBN, apiError{http.StatusBadRequest, "MISSING_ISBN", "Merci d'indiquer un ISBN."}},

	{ErrPayloadTooLarge, apiError{http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "Image trop volumineuse (6 Mo maximum)."}},
	{ocr.ErrTooLarge, apiError{http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "Image trop volumineuse (6 Mo maximum)."}},
	{ErrUnsupportedImage, apiError{http.StatusUnsupportedMediaType, "UNSUPPORTED_IMAGE", "Format d'image non pris en charge (JPEG, PNG ou WEBP)."}},
	{ocr.ErrInvalidImage, apiError{http.StatusBadRequest, "INVALID_IMAGE", "Le fichier envoyé n'est pas une image valide."}},
	{ocr.ErrEmptyBuffer, apiError{http.StatusBadRequest, "INVALID_IMAGE", "Le fichier envoyé est vide."}},
	{ocr.ErrTimeout, apiError{http.StatusRequestTimeout, "OCR_TIMEOUT", "La lecture de l'image a pris trop de temps. Réessayez avec une photo plus nette."}},
	{ocr.ErrExtractionFailed, apiError{http.StatusUnprocessableEntity, "OCR_FAILED", "Impossible de lire le texte de l'image."}},
	{ErrOCRUnavailable, apiError{http.StatusServiceUnavailable, "OCR_UNAVAILABLE", "La lecture d'image est indisponible. Saisissez le texte à la main."}},
	{ErrNoTextInImage, apiError{http.StatusUnprocessableEntity, "OCR_EMPTY", "Aucun texte n'a été détecté sur l'image."}},

	{agent.ErrNotConfigured, apiError{http.StatusServiceUnavailable, "MODEL_NOT_CONFIGURED", "Le service de génération n'est pas configuré."}},
	{agent.ErrModelTimeout, apiError{http.StatusGatewayTimeout, "MODEL_TIMEOUT", "La génération a pris trop de temps. Veuillez réessayer."}},
	{agent.ErrModelRateLimited, apiError{http.StatusTooManyRequests, "MODEL_RATE_LIMITED", "Le service de génération est saturé. Réessayez dans une minute."}},
	{agent.ErrModelFailed, apiError{http.StatusBadGateway, "MODEL_ERROR", "La génération a échoué. Veuillez réessayer."}},

	{cover.ErrInvalidISBN, apiError{http.StatusBadRequest, "INVALID_ISBN", "ISBN invalide."}},
	{cover.ErrNotFound, apiError{http.StatusNotFound, "COVER_NOT_FOUND", "Aucune couverture trouvée pour cet ISBN."}},
	{cover.ErrUpstreamTimeout, apiError{http.StatusGatewayTimeout, "COVER_TIMEOUT", "Le service de couvertures ne répond pas. Réessayez plus tard."}},
	{cover.ErrUpstreamUnavailable, apiError{http.StatusServiceUnavailable, "COVER_UNAVAILABLE", "Le service de couvertures est indisponible. Réessayez plus tard."}},

	{context.Canceled, apiError{http.StatusRequestTimeout, "REQUEST_CANCELED", "Requête annulée."}},
}

var internalError = apiError{http.StatusInternalServerError, "INTERNAL_ERROR", "Erreur interne. Veuillez réessayer."}

// lookupError returns the client-facing shape of err.
func lookupError(err error) (apiError, bool) {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.apiError, true
		}
	}
	return internalError, false
}

// respondError writes the JSON error body for err. Unknown errors are logged
// and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	e, known := lookupError(err)
	if !known {
		log.Printf("[ERROR] Unhandled error path=%s request_id=%s: %v", c.Request.URL.Path, c.GetString("requestID"), err)
	}
	if e.status == http.StatusTooManyRequests {
		c.Header("Retry-After", strconv.Itoa(middleware.RetryAfterSeconds))
	}
	c.AbortWithStatusJSON(e.status, gin.H{
		"error": e.message,
		"code":  e.code,
	})
}
