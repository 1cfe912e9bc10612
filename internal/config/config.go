package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LLM providers supported by the generation endpoint.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds every runtime setting of the server.
type Config struct {
	Env            string
	Port           string
	AllowedOrigins []string

	LLM      LLMConfig
	OCR      OCRConfig
	Limits   LimitsConfig
	Cover    CoverConfig
	Generate GenerateConfig
}

// LLMConfig describes the completion provider.
type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	// RequestsPerSecond paces outbound completion calls process-wide.
	RequestsPerSecond float64
	Burst             int
}

// OCRConfig configures the tesseract engine and the extraction guards.
type OCRConfig struct {
	Binary        string
	Language      string
	TessdataDir   string
	PSM           int
	OEM           int
	Timeout       time.Duration
	MaxConcurrent int64
	MaxChars      int
	TempDir       string
}

// LimitsConfig holds the per-client rate-limit policy.
type LimitsConfig struct {
	Window           time.Duration
	GeneratePerWin   int
	CoverPerWin      int
	MaxKeys          int
	DailyGenerations int64
	QuotaTimezone    string
}

// CoverConfig configures cover lookups.
type CoverConfig struct {
	BaseURL string
	Timeout time.Duration
}

// GenerateConfig configures request intake and the model call.
type GenerateConfig struct {
	Timeout        time.Duration
	MaxUploadBytes int64
}

// Load reads .env.local and .env (both optional) and then the process
// environment. A missing model credential is not an error: the generate
// endpoint answers 503 until one is configured.
func Load() *Config {
	if err := godotenv.Load(".env.local"); err == nil {
		log.Printf("[INFO] Loaded .env.local")
	}
	_ = godotenv.Load()

	cfg := &Config{
		Env:  os.Getenv("ENV"),
		Port: withDefault(os.Getenv("PORT"), "8080"),
		OCR: OCRConfig{
			Binary:        withDefault(os.Getenv("OCR_BINARY"), "tesseract"),
			Language:      withDefault(os.Getenv("OCR_LANG"), "fra"),
			TessdataDir:   os.Getenv("OCR_TESSDATA_DIR"),
			PSM:           intEnv("OCR_PSM", 6),
			OEM:           intEnv("OCR_OEM", 1),
			Timeout:       durationEnv("OCR_TIMEOUT", 15*time.Second),
			MaxConcurrent: int64(intEnv("OCR_MAX_CONCURRENT", 2)),
			MaxChars:      intEnv("OCR_MAX_CHARS", 9000),
			TempDir:       withDefault(os.Getenv("OCR_TEMP_DIR"), os.TempDir()),
		},
		Limits: LimitsConfig{
			Window:           durationEnv("RATE_LIMIT_WINDOW", time.Minute),
			GeneratePerWin:   intEnv("GENERATE_RATE_LIMIT", 20),
			CoverPerWin:      intEnv("COVER_RATE_LIMIT", 60),
			MaxKeys:          intEnv("RATE_LIMIT_MAX_KEYS", 10000),
			DailyGenerations: int64(intEnv("DAILY_GENERATE_QUOTA", 0)),
			QuotaTimezone:    withDefault(os.Getenv("QUOTA_TIMEZONE"), "Europe/Paris"),
		},
		Cover: CoverConfig{
			BaseURL: withDefault(os.Getenv("COVER_BASE_URL"), "https://covers.openlibrary.org"),
			Timeout: durationEnv("COVER_TIMEOUT", 5*time.Second),
		},
		Generate: GenerateConfig{
			Timeout:        durationEnv("GENERATE_TIMEOUT", 25*time.Second),
			MaxUploadBytes: int64(intEnv("MAX_UPLOAD_BYTES", 6*1024*1024)),
		},
	}

	cfg.LLM = loadLLM()
	cfg.AllowedOrigins = allowedOrigins(cfg.Env)
	return cfg
}

// IsProduction reports whether ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func loadLLM() LLMConfig {
	llm := LLMConfig{
		Provider:          strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER"))),
		Model:             os.Getenv("LLM_MODEL"),
		BaseURL:           os.Getenv("LLM_BASE_URL"),
		RequestsPerSecond: floatEnv("LLM_RPS", 2),
		Burst:             intEnv("LLM_BURST", 4),
	}

	keys := map[string]string{
		ProviderGemini:    os.Getenv("GEMINI_API_KEY"),
		ProviderAnthropic: os.Getenv("ANTHROPIC_API_KEY"),
		ProviderOpenAI:    os.Getenv("OPENAI_API_KEY"),
	}

	if llm.Provider == "" {
		// First configured key wins, Gemini first.
		for _, p := range []string{ProviderGemini, ProviderAnthropic, ProviderOpenAI} {
			if keys[p] != "" {
				llm.Provider = p
				break
			}
		}
	}
	if llm.Provider == "" {
		llm.Provider = ProviderGemini
	}
	llm.APIKey = keys[llm.Provider]

	if llm.Model == "" {
		switch llm.Provider {
		case ProviderAnthropic:
			llm.Model = "claude-sonnet-4-20250514"
		case ProviderOpenAI:
			llm.Model = "gpt-4o-mini"
		default:
			llm.Model = "gemini-2.5-flash"
		}
	}
	return llm
}

func allowedOrigins(env string) []string {
	origins := []string{}
	if env != "production" {
		origins = append(origins, "http://localhost:3000", "http://localhost:5173")
	}
	if cloudRunURL := os.Getenv("CLOUD_RUN_URL"); cloudRunURL != "" {
		origins = append(origins, cloudRunURL)
	}
	if extra := os.Getenv("ALLOWED_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}
	return origins
}

func withDefault(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func intEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		log.Printf("[WARN] Invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return v
}

func floatEnv(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		log.Printf("[WARN] Invalid %s=%q, using %g", key, raw, fallback)
		return fallback
	}
	return v
}

// durationEnv accepts Go durations ("15s") or a bare number of seconds.
func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("[WARN] Invalid %s=%q, using %v", key, raw, fallback)
		return fallback
	}
	return d
}
