package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/trustify/backend/internal/apperrors"
	"github.com/trustify/backend/internal/models"
	"github.com/trustify/backend/pkg/embeddings"
)

// ItemStore is the remote item store: the four stored procedures of the demo.
// Implemented by repository.RPCItemsRepository and repository.PostgresItemsRepository.
type ItemStore interface {
	UpsertTextItem(ctx context.Context, req models.UpsertTextItemRequest) (uuid.UUID, error)
	UpdateAIResult(ctx context.Context, result models.AIResult) error
	UpdateEmbedding(ctx context.Context, embedding models.Embedding) error
	SearchTopK(ctx context.Context, req models.SearchRequest) ([]models.SearchHit, error)
}

// EmbeddingClient embeds item text for the demo. Implemented by every internal/embeddings provider.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// DemoParams configures one demo run. Use DefaultDemoParams for the stock values.
type DemoParams struct {
	SessionID string
	Text      string
	Preview   string
	Source    string

	Provider string
	Label    string
	Score    float64
	SkipAI   bool

	SkipEmbedding bool

	K           int
	AllSessions bool
	OnlyNonZero bool
}

// DefaultDemoParams returns the parameters of the stock demo run.
func DefaultDemoParams() DemoParams {
	return DemoParams{
		SessionID:   "sess-ui-demo",
		Text:        "Hello from UI",
		Preview:     "Hello from UI",
		Source:      "web",
		Provider:    "azure",
		Label:       "safe",
		Score:       0.97,
		K:           5,
		OnlyNonZero: true,
	}
}

// DemoResult is what a completed run produced.
type DemoResult struct {
	ItemID         uuid.UUID          `json:"item_id"         yaml:"item_id"`
	AISaved        bool               `json:"ai_saved"        yaml:"ai_saved"`
	EmbeddingSaved bool               `json:"embedding_saved" yaml:"embedding_saved"`
	Hits           []models.SearchHit `json:"hits"            yaml:"hits"`
}

// DemoService runs the insert, label, embed, search sequence against an ItemStore.
type DemoService struct {
	store           ItemStore
	embeddingClient EmbeddingClient
	logger          *slog.Logger
}

// DemoServiceParams configures DemoService. EmbeddingClient may be nil, in which case the demo vector is used.
type DemoServiceParams struct {
	Store           ItemStore
	EmbeddingClient EmbeddingClient
	Logger          *slog.Logger
}

// NewDemoService creates a DemoService.
func NewDemoService(p DemoServiceParams) *DemoService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DemoService{
		store:           p.Store,
		embeddingClient: p.EmbeddingClient,
		logger:          logger,
	}
}

// Run executes the steps strictly in order. The first error or empty result aborts the run
// and no later step is attempted. There are no retries.
func (s *DemoService) Run(ctx context.Context, p DemoParams) (*DemoResult, error) {
	id, err := s.store.UpsertTextItem(ctx, models.UpsertTextItemRequest{
		SessionID: p.SessionID,
		Text:      p.Text,
		Preview:   p.Preview,
		Source:    p.Source,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert text item: %w", err)
	}

	if id == uuid.Nil {
		return nil, fmt.Errorf("upsert text item: %w", apperrors.NewEmptyResultError("upsert_text_item"))
	}

	s.logger.InfoContext(ctx, "Inserted item", "item_id", id, "session_id", p.SessionID)

	result := &DemoResult{ItemID: id}

	if !p.SkipAI {
		err := s.store.UpdateAIResult(ctx, models.AIResult{
			ItemID:   id,
			Provider: p.Provider,
			Label:    p.Label,
			Score:    p.Score,
		})
		if err != nil {
			return nil, fmt.Errorf("update ai result: %w", err)
		}

		result.AISaved = true

		s.logger.InfoContext(ctx, "AI result saved", "item_id", id, "provider", p.Provider, "label", p.Label)
	}

	vector, err := s.vectorFor(ctx, p.Text)
	if err != nil {
		return nil, err
	}

	if !p.SkipEmbedding {
		if err := s.store.UpdateEmbedding(ctx, models.Embedding{ItemID: id, Vector: vector}); err != nil {
			return nil, fmt.Errorf("update embedding: %w", err)
		}

		result.EmbeddingSaved = true

		s.logger.InfoContext(ctx, "Embedding saved", "item_id", id, "dimensions", len(vector))
	}

	search := models.SearchRequest{
		Vector:      vector,
		K:           p.K,
		OnlyNonZero: p.OnlyNonZero,
	}
	if !p.AllSessions {
		session := p.SessionID
		search.SessionID = &session
	}

	hits, err := s.store.SearchTopK(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("search top k: %w", err)
	}

	if hits == nil {
		return nil, fmt.Errorf("search top k: %w", apperrors.NewEmptyResultError("search_topk"))
	}

	s.logger.InfoContext(ctx, "Search completed", "hits", len(hits), "k", p.K, "all_sessions", p.AllSessions)

	result.Hits = hits

	return result, nil
}

// vectorFor returns the vector stored for the item and used as the search query.
func (s *DemoService) vectorFor(ctx context.Context, text string) ([]float32, error) {
	if s.embeddingClient == nil {
		return embeddings.DemoVector(models.EmbeddingDimensions), nil
	}

	vector, err := s.embeddingClient.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	if err := embeddings.CheckDimensions(vector, models.EmbeddingDimensions); err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	return vector, nil
}
