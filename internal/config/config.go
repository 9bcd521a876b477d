package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type Config struct {
	Port string

	// Auth
	DocgraphAPIKey string

	// Graph sink; disabled when PathstoreURL is empty.
	PathstoreURL    string
	PathstoreAPIKey string

	// Record store
	SQLitePath string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentStore int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Sources
	PDFFallbackPdftotext bool
	StyleVocabularyFile  string

	// Watch folder; disabled when empty.
	WatchDir string

	LogLevel string

	// Rebuilt heading size is HeadingBaseSize - HeadingStep*level points.
	HeadingBaseSize float64
	HeadingStep     float64
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		DocgraphAPIKey: os.Getenv("DOCGRAPH_API_KEY"),

		PathstoreURL:    os.Getenv("PATHSTORE_URL"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		SQLitePath: envOr("SQLITE_PATH", "./docgraph.db"),

		WorkerCount:        envInt("WORKER_COUNT", 4),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentStore: envInt("MAX_CONCURRENT_STORE", 10),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
		StyleVocabularyFile:  os.Getenv("STYLE_VOCABULARY_FILE"),

		WatchDir: os.Getenv("WATCH_DIR"),

		LogLevel: strings.ToLower(envOr("LOG_LEVEL", "info")),

		HeadingBaseSize: envFloat("HEADING_BASE_SIZE", 22),
		HeadingStep:     envFloat("HEADING_STEP", 2),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentStore <= 0 {
		cfg.MaxConcurrentStore = 10
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
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.DocgraphAPIKey, validation.Required.Error("DOCGRAPH_API_KEY is required")),
		validation.Field(&c.PathstoreURL, is.URL),
		validation.Field(&c.PathstoreAPIKey,
			validation.When(c.PathstoreURL != "", validation.Required.Error("PATHSTORE_API_KEY is required when PATHSTORE_URL is set"))),
		validation.Field(&c.SQLitePath, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.HeadingBaseSize, validation.Required, validation.Min(1.0)),
		validation.Field(&c.HeadingStep, validation.Min(0.0)),
	)
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// GraphEnabled reports whether results are also written to pathstore.
func (c Config) GraphEnabled() bool {
	return c.PathstoreURL != ""
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
