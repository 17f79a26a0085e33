package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Ollama model endpoint
	OllamaURL   string
	OllamaModel string

	// Cleaning pass
	CleanMaxChars         int
	CleanMaxAttempts      int
	CleanBackoff          time.Duration
	CleanTimeout          time.Duration
	CleanPreflightTimeout time.Duration
	CleanMinRatio         float64
	CleanWorkers          int
	CleanPreserveTags     bool

	// Directories
	OutputDir string
	CacheDir  string
	LogDir    string
	UseCache  bool

	// Logging
	LogLevel  slog.Level
	LogFormat string

	// OCR
	OCREnabled      bool
	OCRLanguage     string
	OCRDPI          int
	PDFMinTextChars int

	// Service mode
	APIKey         string
	WorkerCount    int
	MaxQueueSize   int
	MaxUploadBytes int64
	JobTTL         time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first; variables already set take precedence.
func Load() Config {
	_ = godotenv.Load(envFile())

	cfg := Config{
		Port: envOr("PORT", "8090"),

		OllamaURL:   strings.TrimRight(envOr("OLLAMA_URL", "http://localhost:11434"), "/"),
		OllamaModel: envOr("OLLAMA_MODEL", "phi3:3.8b"),

		CleanMaxChars:         envInt("CLEAN_MAX_CHARS", 600),
		CleanMaxAttempts:      envInt("CLEAN_MAX_ATTEMPTS", 3),
		CleanBackoff:          envDuration("CLEAN_BACKOFF", 2*time.Second),
		CleanTimeout:          envDuration("CLEAN_TIMEOUT", 60*time.Second),
		CleanPreflightTimeout: envDuration("CLEAN_PREFLIGHT_TIMEOUT", 5*time.Second),
		CleanMinRatio:         envFloat("CLEAN_MIN_RATIO", 0.5),
		CleanWorkers:          envInt("CLEAN_WORKERS", 1),
		CleanPreserveTags:     envBool("CLEAN_PRESERVE_TAGS", true),

		OutputDir: envOr("OUTPUT_DIR", "output"),
		CacheDir:  envOr("CACHE_DIR", "cache"),
		LogDir:    envOr("LOG_DIR", "logs"),
		UseCache:  envBool("USE_CACHE", true),

		LogLevel:  envLevel("LOG_LEVEL", slog.LevelInfo),
		LogFormat: envOr("LOG_FORMAT", "text"),

		OCREnabled:      envBool("OCR_ENABLED", true),
		OCRLanguage:     envOr("OCR_LANGUAGE", "eng"),
		OCRDPI:          envInt("OCR_DPI", 300),
		PDFMinTextChars: envInt("PDF_MIN_TEXT_CHARS", 20),

		APIKey:         os.Getenv("OCRPOLISH_API_KEY"),
		WorkerCount:    envInt("WORKER_COUNT", 1),
		MaxQueueSize:   envInt("MAX_QUEUE_SIZE", 100),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.CleanMaxChars <= 0 {
		cfg.CleanMaxChars = 600
	}
	if cfg.CleanMaxAttempts <= 0 {
		cfg.CleanMaxAttempts = 3
	}
	if cfg.CleanBackoff < 0 {
		cfg.CleanBackoff = 2 * time.Second
	}
	if cfg.CleanTimeout <= 0 {
		cfg.CleanTimeout = 60 * time.Second
	}
	if cfg.CleanPreflightTimeout <= 0 {
		cfg.CleanPreflightTimeout = 5 * time.Second
	}
	if cfg.CleanMinRatio <= 0 {
		cfg.CleanMinRatio = 0.5
	}
	if cfg.CleanWorkers <= 0 {
		cfg.CleanWorkers = 1
	}
	if cfg.OCRDPI <= 0 {
		cfg.OCRDPI = 300
	}
	if cfg.PDFMinTextChars < 0 {
		cfg.PDFMinTextChars = 20
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.OllamaURL == "" {
		return fmt.Errorf("OLLAMA_URL is required")
	}
	if c.OllamaModel == "" {
		return fmt.Errorf("OLLAMA_MODEL is required")
	}
	if c.CleanMinRatio > 1 {
		return fmt.Errorf("CLEAN_MIN_RATIO must be <= 1, got %g", c.CleanMinRatio)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func envFile() string {
	if v := os.Getenv("OCRPOLISH_ENV_FILE"); v != "" {
		return v
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".env"
	}
	return filepath.Join(wd, ".env")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(v)); err == nil {
			return lvl
		}
	}
	return fallback
}
