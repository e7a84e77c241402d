package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

// ErrMissingEndpoint is returned when Azure OpenAI is selected without EMBEDDING_BASE_URL.
var ErrMissingEndpoint = errors.New("EMBEDDING_BASE_URL is required for azure-openai")

// AzureOpenAIClient embeds text with an Azure OpenAI deployment.
type AzureOpenAIClient struct {
	client     *goopenai.Client
	model      goopenai.EmbeddingModel
	dimensions int
}

// NewAzureOpenAIClient creates a client for the resource at endpoint. model is the deployment's
// model name and defaults to text-embedding-3-small.
func NewAzureOpenAIClient(apiKey, endpoint, model string, dimensions int) (*AzureOpenAIClient, error) {
	if endpoint == "" {
		return nil, ErrMissingEndpoint
	}

	if model == "" {
		model = string(goopenai.SmallEmbedding3)
	}

	config := goopenai.DefaultAzureConfig(apiKey, endpoint)

	return &AzureOpenAIClient{
		client:     goopenai.NewClientWithConfig(config),
		model:      goopenai.EmbeddingModel(model),
		dimensions: dimensions,
	}, nil
}

// CreateEmbedding returns the embedding for input.
func (c *AzureOpenAIClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("azure openai: input text is empty")
	}

	resp, err := c.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      []string{input},
		Model:      c.model,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("azure openai embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("azure openai: no embedding in response")
	}

	return resp.Data[0].Embedding, nil
}
