package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Model     string `json:"model"`
	OCR       string `json:"ocr"`

	// DailyRemaining is omitted when no daily quota is enforced.
	DailyRemaining *int64 `json:"dailyRemaining,omitempty"`
}

// HandleHealth returns the health status of the service
// Used for Cloud Run liveness check
func (h *Handler) HandleHealth(c *gin.Context) {
	modelStatus := availability(h.generator != nil && h.generator.Configured())
	ocrStatus := availability(h.extractor != nil && h.ocrAvailable())

	status := "healthy"
	if modelStatus == "unavailable" || ocrStatus == "unavailable" {
		status = "degraded"
	}

	resp := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Model:     modelStatus,
		OCR:       ocrStatus,
	}
	if h.quota != nil {
		if left := h.quota.Remaining(); left >= 0 {
			resp.DailyRemaining = &left
		}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleReadiness returns whether the service is ready to accept traffic
// Used for Cloud Run startup check - stricter than health
func (h *Handler) HandleReadiness(c *gin.Context) {
	if h.generator == nil || !h.generator.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"reason": "model_not_configured",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func availability(ok bool) string {
	if ok {
		return "ready"
	}
	return "unavailable"
}
