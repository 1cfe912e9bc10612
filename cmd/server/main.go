package main

import (
	"context"
	"log"
	"strings"
	"time"

	"fiche-livre/backend/internal/agent"
	"fiche-livre/backend/internal/config"
	"fiche-livre/backend/internal/cover"
	"fiche-livre/backend/internal/handler"
	"fiche-livre/backend/internal/middleware"
	"fiche-livre/backend/internal/ocr"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	log.Printf("[INFO] Starting Fiche Livre env=%s", cfg.Env)

	llmClient, err := agent.NewLLMClient(context.Background(), cfg.LLM)
	if err != nil {
		log.Printf("[WARN] Failed to initialize %s client: %v", cfg.LLM.Provider, err)
		log.Println("[WARN] Generation will be unavailable")
		llmClient = nil
	}
	copywriter := agent.NewCopywriter(llmClient, cfg.Generate.Timeout)

	tesseract := ocr.NewTesseract(cfg.OCR.Binary, cfg.OCR.Language, cfg.OCR.TessdataDir, cfg.OCR.PSM, cfg.OCR.OEM)
	if !tesseract.Available() {
		log.Printf("[WARN] %s not found in PATH, cover photos will be rejected", cfg.OCR.Binary)
	}
	extractor := ocr.NewExtractor(tesseract, ocr.Options{
		MaxBytes:      cfg.Generate.MaxUploadBytes,
		MaxChars:      cfg.OCR.MaxChars,
		Timeout:       cfg.OCR.Timeout,
		MaxConcurrent: cfg.OCR.MaxConcurrent,
		TempDir:       cfg.OCR.TempDir,
	})

	dailyQuota := middleware.NewDailyQuota(cfg.Limits.DailyGenerations, cfg.Limits.QuotaTimezone)

	h := handler.New(handler.Deps{
		Extractor:      extractor,
		Generator:      copywriter,
		Covers:         cover.NewService(cfg.Cover.BaseURL, cfg.Cover.Timeout),
		Quota:          dailyQuota,
		MaxUploadBytes: cfg.Generate.MaxUploadBytes,
		OCRAvailable:   tesseract.Available,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.MaxMultipartMemory = 8 << 20

	r.Use(middleware.JSONRecovery())
	r.Use(middleware.RequestID())
	// Security headers (before CORS)
	r.Use(middleware.SecurityHeaders())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Accept-Language"},
		ExposeHeaders:    []string{"Retry-After", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	generateLimiter := middleware.NewFixedWindowLimiter(cfg.Limits.GeneratePerWin, cfg.Limits.Window, cfg.Limits.MaxKeys)
	coverLimiter := middleware.NewFixedWindowLimiter(cfg.Limits.CoverPerWin, cfg.Limits.Window, cfg.Limits.MaxKeys)

	log.Printf("[INFO] Rate limiting enabled generate=%d/%v cover=%d/%v daily=%d",
		cfg.Limits.GeneratePerWin, cfg.Limits.Window, cfg.Limits.CoverPerWin, cfg.Limits.Window, cfg.Limits.DailyGenerations)

	h.RegisterRoutes(r, handler.Guards{
		Generate: []gin.HandlerFunc{middleware.RateLimitMiddleware(generateLimiter, dailyQuota)},
		Cover:    []gin.HandlerFunc{middleware.RateLimitMiddleware(coverLimiter, nil)},
	})

	if cfg.IsProduction() {
		r.Static("/assets", "/app/static/assets")

		r.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(404, gin.H{"error": "Ressource introuvable.", "code": "NOT_FOUND"})
				return
			}
			c.File("/app/static/index.html")
		})
	}

	log.Printf("[INFO] Server ready port=%s allowed_origins=%v", cfg.Port, cfg.AllowedOrigins)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("[FATAL] Failed to start server: %v", err)
	}
}
