package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"atsense-api/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	AllowGuests     bool

	GeminiAPIKey      string
	LLMProvider       string
	LLMModels         []string
	VisionModel       string
	LLMMaxRetries     int
	LLMRequestsPerSec float64
	LLMBurst          int

	MinTextLength    int
	MaxJobDescLength int
	MaxUploadBytes   int64
	RequestTimeout   time.Duration
	VisionExtraction bool
	DocumentFallback bool

	RateLimitMaxRequests int
	RateLimitWindow      time.Duration

	DocumentStore string
	DatabaseURL   string
	SQLitePath    string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	SQSQueueURL     string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
}

// Defaults mirrored by Load when the matching env var is absent or invalid.
const (
	DefaultMinTextLength    = 50
	DefaultMaxJobDescLength = 10000
	DefaultMaxUploadBytes   = 5 << 20
	DefaultLLMMaxRetries    = 3
)

// DefaultModels is the model ladder, cheapest first.
var DefaultModels = []string{"gemini-2.5-flash-lite", "gemini-2.5-flash", "gemini-2.5-pro"}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	docStore := normalizeDocumentStore(getEnv("DOCUMENT_STORE", ""), dbURL)

	if env == "production" && docStore != "postgres" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": env, "document_store": docStore})
	}

	apiKey := getEnv("GOOGLE_GENERATIVE_AI_API_KEY", os.Getenv("GEMINI_API_KEY"))

	models := splitAndTrim(getEnv("LLM_MODELS", ""))
	if len(models) == 0 {
		models = append([]string(nil), DefaultModels...)
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		AllowGuests:     getEnvBool("ALLOW_GUESTS", env == "dev" || env == "local"),

		GeminiAPIKey:      apiKey,
		LLMProvider:       normalizeProvider(getEnv("LLM_PROVIDER", "gemini")),
		LLMModels:         models,
		VisionModel:       getEnv("VISION_MODEL", models[0]),
		LLMMaxRetries:     getEnvInt("LLM_MAX_RETRIES", DefaultLLMMaxRetries),
		LLMRequestsPerSec: getEnvFloat("LLM_RPS", 0),
		LLMBurst:          getEnvInt("LLM_BURST", 1),

		MinTextLength:    getEnvInt("MIN_TEXT_LENGTH", DefaultMinTextLength),
		MaxJobDescLength: getEnvInt("MAX_JOB_DESC_LENGTH", DefaultMaxJobDescLength),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),
		RequestTimeout:   getEnvDuration("REQUEST_TIMEOUT", 120*time.Second),
		VisionExtraction: getEnvBool("VISION_EXTRACTION", true),
		DocumentFallback: getEnvBool("DOCUMENT_FALLBACK", true),

		RateLimitMaxRequests: getEnvInt("RATE_LIMIT_MAX_REQUESTS", 10),
		RateLimitWindow:      getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		DocumentStore: docStore,
		DatabaseURL:   dbURL,
		SQLitePath:    getEnv("SQLITE_PATH", "./data/atsense.db"),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "none")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		SQSQueueURL:     getEnv("RA_SQS_QUEUE_URL", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),
	}
}

func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// godotenv.Load never overrides variables already set in the process.
		if err := godotenv.Load(path); err != nil {
			telemetry.Warn("config.env_file_skipped", map[string]any{"path": path, "error": err.Error()})
		}
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		warnInvalid(key, raw, def)
		return def
	}
	return v
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		warnInvalid(key, raw, def)
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		warnInvalid(key, raw, def.String())
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "local":
		return "local"
	default:
		return "none"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "langchain", "langchaingo":
		return "langchain"
	default:
		return "gemini"
	}
}

func normalizeDocumentStore(raw, dbURL string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "pg":
		return "postgres"
	case "sqlite":
		return "sqlite"
	case "memory":
		return "memory"
	}
	if strings.TrimSpace(dbURL) != "" {
		return "postgres"
	}
	return "memory"
}

func warnInvalid(key, raw string, def any) {
	telemetry.Warn("config.env_invalid", map[string]any{"key": key, "value": raw, "default": def})
}
