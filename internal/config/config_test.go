package config

import (
	"errors"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		shouldSet    bool
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			shouldSet:    true,
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_VAR_MISSING",
			defaultValue: "default",
			shouldSet:    false,
			want:         "default",
		},
		{
			name:         "returns default when environment variable is empty string",
			key:          "TEST_VAR_EMPTY",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    true,
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     int
	}{
		{name: "valid integer", envValue: "200", want: 200},
		{name: "empty uses default", envValue: "", want: 100},
		{name: "invalid uses default", envValue: "not_a_number", want: 100},
		{name: "negative", envValue: "-50", want: -50},
		{name: "zero", envValue: "0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT_VAR", tt.envValue)

			if got := getEnvAsInt("TEST_INT_VAR", 100); got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsFloatAndDuration(t *testing.T) {
	t.Setenv("TEST_FLOAT", "2.5")
	t.Setenv("TEST_BAD_FLOAT", "fast")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_BAD_DURATION", "90")

	if got := getEnvAsFloat("TEST_FLOAT", 1); got != 2.5 {
		t.Errorf("getEnvAsFloat() = %v, want 2.5", got)
	}

	if got := getEnvAsFloat("TEST_BAD_FLOAT", 1); got != 1 {
		t.Errorf("getEnvAsFloat() = %v, want default 1", got)
	}

	if got := getEnvAsDuration("TEST_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("getEnvAsDuration() = %v, want 90s", got)
	}

	if got := getEnvAsDuration("TEST_BAD_DURATION", time.Second); got != time.Second {
		t.Errorf("getEnvAsDuration() = %v, want default 1s", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %v, want 8080", cfg.Port)
	}

	if cfg.SupabaseRetryMax != 0 {
		t.Errorf("SupabaseRetryMax = %v, want 0 (single attempt)", cfg.SupabaseRetryMax)
	}

	if cfg.MaxRequestBodyBytes != 10<<20 {
		t.Errorf("MaxRequestBodyBytes = %v, want %v", cfg.MaxRequestBodyBytes, 10<<20)
	}

	if cfg.AnalysisCacheSize != 1000 || cfg.AnalysisCacheTTL != 10*time.Minute {
		t.Errorf("analysis cache = %d/%s, want 1000/10m", cfg.AnalysisCacheSize, cfg.AnalysisCacheTTL)
	}

	if cfg.EmbeddingMaxAttempts != 3 || cfg.EmbeddingMaxWorkers != 4 || cfg.EmbeddingRateLimit != 0 {
		t.Errorf("embedding jobs = %d/%d/%v, want 3/4/0",
			cfg.EmbeddingMaxAttempts, cfg.EmbeddingMaxWorkers, cfg.EmbeddingRateLimit)
	}

	if cfg.ServiceName != "trustify-api" {
		t.Errorf("ServiceName = %v, want trustify-api", cfg.ServiceName)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("SUPABASE_RETRY_MAX", "2")
	t.Setenv("AZURE_CONTENT_SAFETY_ENDPOINT", "https://cs.cognitiveservices.azure.com/")
	t.Setenv("PORT", "3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.SupabaseURL != "https://abc.supabase.co" {
		t.Errorf("SupabaseURL = %v, want trailing slash trimmed", cfg.SupabaseURL)
	}

	if cfg.ContentSafetyEndpoint != "https://cs.cognitiveservices.azure.com" {
		t.Errorf("ContentSafetyEndpoint = %v, want trailing slash trimmed", cfg.ContentSafetyEndpoint)
	}

	if cfg.SupabaseRetryMax != 2 || cfg.Port != "3000" {
		t.Errorf("SupabaseRetryMax/Port = %d/%s, want 2/3000", cfg.SupabaseRetryMax, cfg.Port)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "negative body limit", key: "MAX_REQUEST_BODY_BYTES", val: "-1"},
		{name: "negative retries", key: "SUPABASE_RETRY_MAX", val: "-1"},
		{name: "zero pool", key: "DATABASE_MAX_CONNS", val: "0"},
		{name: "pool overflowing int32", key: "DATABASE_MAX_CONNS", val: "4294967297"},
		{name: "negative rate limit", key: "AZURE_CONTENT_SAFETY_RATE_LIMIT", val: "-3"},
		{name: "negative cache size", key: "ANALYSIS_CACHE_SIZE", val: "-1"},
		{name: "zero cache ttl", key: "ANALYSIS_CACHE_TTL", val: "0s"},
		{name: "zero embedding attempts", key: "EMBEDDING_MAX_ATTEMPTS", val: "0"},
		{name: "zero embedding workers", key: "EMBEDDING_MAX_WORKERS", val: "0"},
		{name: "negative embedding rate", key: "EMBEDDING_RATE_LIMIT", val: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s: want error", tt.key, tt.val)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	empty := &Config{}

	if !errors.Is(empty.RequireSupabase(), ErrSupabaseNotConfigured) {
		t.Error("RequireSupabase() on empty config: want ErrSupabaseNotConfigured")
	}

	if !errors.Is(empty.RequireContentSafety(), ErrContentSafetyNotConfigured) {
		t.Error("RequireContentSafety() on empty config: want ErrContentSafetyNotConfigured")
	}

	if !errors.Is(empty.RequireDatabase(), ErrDatabaseNotConfigured) {
		t.Error("RequireDatabase() on empty config: want ErrDatabaseNotConfigured")
	}

	if !errors.Is(empty.RequireEmbeddings(), ErrEmbeddingsNotConfigured) {
		t.Error("RequireEmbeddings() on empty config: want ErrEmbeddingsNotConfigured")
	}

	anonOnly := &Config{SupabaseURL: "https://abc.supabase.co", SupabaseAnonKey: "anon"}
	if err := anonOnly.RequireSupabase(); err != nil {
		t.Errorf("RequireSupabase() = %v, want nil", err)
	}

	if !errors.Is(anonOnly.RequireServiceRole(), ErrServiceRoleKeyRequired) {
		t.Error("RequireServiceRole() without service key: want ErrServiceRoleKeyRequired")
	}

	full := &Config{
		SupabaseURL:            "https://abc.supabase.co",
		SupabaseServiceRoleKey: "service",
		ContentSafetyKey:       "k",
		ContentSafetyEndpoint:  "https://cs",
		DatabaseURL:            "postgres://localhost/db",
		VisionKey:              "v",
		VisionEndpoint:         "https://vision",
	}

	for name, err := range map[string]error{
		"RequireServiceRole":   full.RequireServiceRole(),
		"RequireContentSafety": full.RequireContentSafety(),
		"RequireDatabase":      full.RequireDatabase(),
	} {
		if err != nil {
			t.Errorf("%s() = %v, want nil", name, err)
		}
	}

	if !full.VisionConfigured() {
		t.Error("VisionConfigured() = false, want true")
	}
}
