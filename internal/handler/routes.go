package handler

import (
	"github.com/gin-gonic/gin"
)

// Guards are the per-route middleware chains, rate limiting first.
type Guards struct {
	Generate []gin.HandlerFunc
	Cover    []gin.HandlerFunc
}

// RegisterRoutes mounts the API on r. Health endpoints sit outside /api and
// are never rate limited.
func (h *Handler) RegisterRoutes(r gin.IRouter, g Guards) {
	r.GET("/health", h.HandleHealth)
	r.GET("/ready", h.HandleReadiness)

	api := r.Group("/api")
	{
		api.POST("/generate", chain(g.Generate, h.HandleGenerate)...)
		api.GET("/cover-lookup", chain(g.Cover, h.HandleCoverLookup)...)
		api.GET("/cover", chain(g.Cover, h.HandleCoverLookup)...)
	}
}

func chain(guards []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guards)+1)
	out = append(out, guards...)
	return append(out, handler)
}
