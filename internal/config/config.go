// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration. Every entry point loads the whole set and then
// checks what it needs with the Require* methods.
type Config struct {
	Port     string
	LogLevel string

	// MaxRequestBodyBytes caps request bodies, screenshots included. 0 disables the limit.
	MaxRequestBodyBytes int64
	ShutdownTimeout     time.Duration

	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string
	SupabaseFunctionsURL   string
	// SupabaseRetryMax is 0 by default: each RPC is a single attempt.
	SupabaseRetryMax int
	SupabaseTimeout  time.Duration

	DatabaseURL      string
	DatabaseMaxConns int32

	ContentSafetyKey        string
	ContentSafetyEndpoint   string
	ContentSafetyOutputType string
	ContentSafetyRateLimit  float64
	ContentSafetyRetryMax   int

	VisionKey      string
	VisionEndpoint string
	VisionRetryMax int

	// AnalysisCacheSize 0 disables the analysis result cache.
	AnalysisCacheSize int
	AnalysisCacheTTL  time.Duration

	EmbeddingProvider string
	EmbeddingAPIKey   string
	EmbeddingModel    string
	EmbeddingBaseURL  string
	// EmbeddingMaxAttempts is how many times a backfill job is tried before River discards it.
	EmbeddingMaxAttempts int
	EmbeddingMaxWorkers  int
	// EmbeddingRateLimit caps provider calls per second across workers. 0 means no limit.
	EmbeddingRateLimit float64

	ServiceName     string
	TracesExporter  string
	MetricsExporter string
}

var (
	// ErrSupabaseNotConfigured is returned by RequireSupabase.
	ErrSupabaseNotConfigured = errors.New(
		"SUPABASE_URL and SUPABASE_ANON_KEY or SUPABASE_SERVICE_ROLE_KEY environment variables are required")
	// ErrServiceRoleKeyRequired is returned by RequireServiceRole.
	ErrServiceRoleKeyRequired = errors.New("SUPABASE_SERVICE_ROLE_KEY environment variable is required")
	// ErrContentSafetyNotConfigured is returned by RequireContentSafety.
	ErrContentSafetyNotConfigured = errors.New(
		"AZURE_CONTENT_SAFETY_KEY and AZURE_CONTENT_SAFETY_ENDPOINT environment variables are required")
	// ErrDatabaseNotConfigured is returned by RequireDatabase.
	ErrDatabaseNotConfigured = errors.New("DATABASE_URL environment variable is required")
	// ErrEmbeddingsNotConfigured is returned by RequireEmbeddings.
	ErrEmbeddingsNotConfigured = errors.New("EMBEDDING_PROVIDER environment variable is required")
)

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDuration parses a Go duration ("30s", "10m") or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}

	return value
}

// Load reads configuration from environment variables and returns a Config struct.
// It automatically loads .env file if it exists.
// Returns default values for any missing environment variables; credentials are checked by
// the Require* methods of the entry point that needs them.
func Load() (*Config, error) {
	// Load .env file if it exists. Skip logging when absent (e.g. env from secrets/parameter store).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	maxConns := getEnvAsInt("DATABASE_MAX_CONNS", 4)
	if maxConns <= 0 || maxConns > math.MaxInt32 {
		return nil, fmt.Errorf("DATABASE_MAX_CONNS must be a positive integer up to %d, got %d", math.MaxInt32, maxConns)
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(getEnvAsInt("MAX_REQUEST_BODY_BYTES", 10<<20)),
		ShutdownTimeout:     getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		SupabaseURL:            strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseAnonKey:        os.Getenv("SUPABASE_ANON_KEY"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseFunctionsURL:   os.Getenv("SUPABASE_FUNCTIONS_URL"),
		SupabaseRetryMax:       getEnvAsInt("SUPABASE_RETRY_MAX", 0),
		SupabaseTimeout:        getEnvAsDuration("SUPABASE_TIMEOUT", 30*time.Second),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseMaxConns: int32(maxConns),

		ContentSafetyKey:        os.Getenv("AZURE_CONTENT_SAFETY_KEY"),
		ContentSafetyEndpoint:   strings.TrimRight(os.Getenv("AZURE_CONTENT_SAFETY_ENDPOINT"), "/"),
		ContentSafetyOutputType: getEnv("AZURE_CONTENT_SAFETY_OUTPUT_TYPE", "EightSeverityLevels"),
		ContentSafetyRateLimit:  getEnvAsFloat("AZURE_CONTENT_SAFETY_RATE_LIMIT", 10),
		ContentSafetyRetryMax:   getEnvAsInt("AZURE_CONTENT_SAFETY_RETRY_MAX", 3),

		VisionKey:      os.Getenv("AZURE_VISION_KEY"),
		VisionEndpoint: strings.TrimRight(os.Getenv("AZURE_VISION_ENDPOINT"), "/"),
		VisionRetryMax: getEnvAsInt("AZURE_VISION_RETRY_MAX", 3),

		AnalysisCacheSize: getEnvAsInt("ANALYSIS_CACHE_SIZE", 1000),
		AnalysisCacheTTL:  getEnvAsDuration("ANALYSIS_CACHE_TTL", 10*time.Minute),

		EmbeddingProvider: os.Getenv("EMBEDDING_PROVIDER"),
		EmbeddingAPIKey:   os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingModel:    os.Getenv("EMBEDDING_MODEL"),
		EmbeddingBaseURL:  os.Getenv("EMBEDDING_BASE_URL"),

		EmbeddingMaxAttempts: getEnvAsInt("EMBEDDING_MAX_ATTEMPTS", 3),
		EmbeddingMaxWorkers:  getEnvAsInt("EMBEDDING_MAX_WORKERS", 4),
		EmbeddingRateLimit:   getEnvAsFloat("EMBEDDING_RATE_LIMIT", 0),

		ServiceName:     getEnv("OTEL_SERVICE_NAME", "trustify-api"),
		TracesExporter:  os.Getenv("OTEL_TRACES_EXPORTER"),
		MetricsExporter: os.Getenv("OTEL_METRICS_EXPORTER"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxRequestBodyBytes < 0 {
		return errors.New("MAX_REQUEST_BODY_BYTES must not be negative")
	}

	if c.SupabaseRetryMax < 0 {
		return errors.New("SUPABASE_RETRY_MAX must not be negative")
	}

	if c.DatabaseMaxConns <= 0 {
		return errors.New("DATABASE_MAX_CONNS must be a positive integer")
	}

	if c.ContentSafetyRateLimit < 0 {
		return errors.New("AZURE_CONTENT_SAFETY_RATE_LIMIT must not be negative")
	}

	if c.EmbeddingMaxAttempts <= 0 {
		return errors.New("EMBEDDING_MAX_ATTEMPTS must be a positive integer")
	}

	if c.EmbeddingMaxWorkers <= 0 {
		return errors.New("EMBEDDING_MAX_WORKERS must be a positive integer")
	}

	if c.EmbeddingRateLimit < 0 {
		return errors.New("EMBEDDING_RATE_LIMIT must not be negative")
	}

	if c.AnalysisCacheSize < 0 {
		return errors.New("ANALYSIS_CACHE_SIZE must not be negative")
	}

	if c.AnalysisCacheSize > 0 && c.AnalysisCacheTTL <= 0 {
		return fmt.Errorf("ANALYSIS_CACHE_TTL must be positive when the cache is enabled, got %s", c.AnalysisCacheTTL)
	}

	return nil
}

// RequireSupabase checks that the project URL and at least one key are set.
func (c *Config) RequireSupabase() error {
	if c.SupabaseURL == "" || (c.SupabaseAnonKey == "" && c.SupabaseServiceRoleKey == "") {
		return ErrSupabaseNotConfigured
	}

	return nil
}

// RequireServiceRole checks the Supabase config and the service-role key used by Edge Functions.
func (c *Config) RequireServiceRole() error {
	if err := c.RequireSupabase(); err != nil {
		return err
	}

	if c.SupabaseServiceRoleKey == "" {
		return ErrServiceRoleKeyRequired
	}

	return nil
}

// RequireContentSafety checks the Azure Content Safety credentials.
func (c *Config) RequireContentSafety() error {
	if c.ContentSafetyKey == "" || c.ContentSafetyEndpoint == "" {
		return ErrContentSafetyNotConfigured
	}

	return nil
}

// RequireDatabase checks that DATABASE_URL is set.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return ErrDatabaseNotConfigured
	}

	return nil
}

// RequireEmbeddings checks that an embedding provider is selected.
func (c *Config) RequireEmbeddings() error {
	if c.EmbeddingProvider == "" {
		return ErrEmbeddingsNotConfigured
	}

	return nil
}

// VisionConfigured reports whether screenshot OCR can run.
func (c *Config) VisionConfigured() bool {
	return c.VisionKey != "" && c.VisionEndpoint != ""
}
