// Package embeddings selects the embedding provider used by the demo flow.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/trustify/backend/internal/googleai"
	"github.com/trustify/backend/internal/openai"
)

// Providers accepted by NewClient.
const (
	ProviderNone        = ""
	ProviderOpenAI      = "openai"
	ProviderAzureOpenAI = "azure-openai"
	ProviderGoogle      = "google"
)

var (
	// ErrUnknownProvider is returned for an unsupported EMBEDDING_PROVIDER.
	ErrUnknownProvider = errors.New("unknown embedding provider")
	// ErrMissingAPIKey is returned when a provider is selected without a key.
	ErrMissingAPIKey = errors.New("EMBEDDING_API_KEY is required for the selected provider")
)

// Client turns text into an embedding vector.
type Client interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

// NewClient returns the client for cfg.Provider, or nil when no provider is configured and
// the fixed demo vector should be used.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == ProviderNone || provider == "none" {
		//nolint:nilnil // no provider means the demo vector
		return nil, nil
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrMissingAPIKey)
	}

	switch provider {
	case ProviderOpenAI:
		return openai.NewClient(cfg.APIKey,
			openai.WithDimensions(cfg.Dimensions),
			openai.WithModel(cfg.Model),
			openai.WithBaseURL(cfg.BaseURL),
		), nil
	case ProviderAzureOpenAI:
		return NewAzureOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case ProviderGoogle, "gemini":
		client, err := googleai.NewClient(ctx, cfg.APIKey,
			googleai.WithDimensions(cfg.Dimensions),
			googleai.WithModel(cfg.Model),
			googleai.WithBaseURL(cfg.BaseURL),
		)
		if err != nil {
			return nil, err
		}

		return client, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
