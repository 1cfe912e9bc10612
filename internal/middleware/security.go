package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SecurityHeaders returns a middleware that adds security headers.
// HSTS is only sent when the request arrived over TLS, directly or through a
// proxy reporting X-Forwarded-Proto.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// RequestIDHeader carries the per-request identifier.
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with a random identifier, echoed in the
// response header and stored in the gin context under "requestID".
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("requestID", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// JSONRecovery turns panics into the generic 500 JSON body so the API never
// falls back to an HTML or empty error page.
func JSONRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Printf("[ERROR] Panic recovered path=%s request_id=%s: %v", c.Request.URL.Path, c.GetString("requestID"), recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "Erreur interne. Veuillez réessayer.",
			"code":  "INTERNAL_ERROR",
		})
	})
}
