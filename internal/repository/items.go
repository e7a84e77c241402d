package repository

import (
	"github.com/trustify/backend/internal/models"
)

// Stored procedures behind the item store. Both backends call the same procedures.
const (
	ProcUpsertTextItem      = "upsert_text_item"
	ProcUpdateItemAIResult  = "update_item_ai_result"
	ProcUpdateItemEmbedding = "update_item_embedding_normalized"
	ProcSearchTopK          = "search_topk"
)

type upsertTextItemParams struct {
	SessionID string `json:"p_session_id"`
	Text      string `json:"p_text"`
	Preview   string `json:"p_preview"`
	Source    string `json:"p_source"`
}

type updateAIResultParams struct {
	ID       string  `json:"p_id"`
	Provider string  `json:"p_provider"`
	Label    string  `json:"p_label"`
	Score    float64 `json:"p_score"`
}

type updateEmbeddingParams struct {
	ID     string    `json:"p_id"`
	Vector []float32 `json:"p_vec"`
}

// searchTopKParams sends p_session_id as JSON null when the search spans all sessions.
type searchTopKParams struct {
	SessionID   *string   `json:"p_session_id"`
	Vector      []float32 `json:"p_vec"`
	K           int       `json:"p_k"`
	OnlyNonZero bool      `json:"p_only_nonzero"`
}

func newSearchTopKParams(req models.SearchRequest) searchTopKParams {
	return searchTopKParams{
		SessionID:   req.SessionID,
		Vector:      req.Vector,
		K:           req.K,
		OnlyNonZero: req.OnlyNonZero,
	}
}
