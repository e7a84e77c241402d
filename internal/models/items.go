package models

import (
	"github.com/google/uuid"
)

// EmbeddingDimensions is the length of the vector column behind update_item_embedding_normalized and search_topk.
const EmbeddingDimensions = 1536

// Item is a stored text item. ContentHash is filled in by the database trigger, never by the client.
type Item struct {
	ID          uuid.UUID `json:"id"`
	SessionID   string    `json:"session_id"`
	Text        string    `json:"text"`
	Preview     string    `json:"preview"`
	Source      string    `json:"source"`
	ContentHash string    `json:"content_hash,omitempty"`
}

// UpsertTextItemRequest is the input of upsert_text_item.
type UpsertTextItemRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Preview   string `json:"preview"`
	Source    string `json:"source"`
}

// AIResult is a classification label attached to an item by a moderation provider.
type AIResult struct {
	ItemID   uuid.UUID `json:"item_id"`
	Provider string    `json:"provider"`
	Label    string    `json:"label"`
	Score    float64   `json:"score"`
}

// Embedding is the vector stored for an item. The database normalizes it on write.
type Embedding struct {
	ItemID uuid.UUID `json:"item_id"`
	Vector []float32 `json:"vector"`
}

// SearchRequest is the input of search_topk.
// A nil SessionID searches across all sessions.
type SearchRequest struct {
	SessionID   *string   `json:"session_id"`
	Vector      []float32 `json:"vector"`
	K           int       `json:"k"`
	OnlyNonZero bool      `json:"only_nonzero"`
}

// SearchHit is one row returned by search_topk, ordered by ascending cosine distance.
type SearchHit struct {
	ID        uuid.UUID `json:"id"         yaml:"id"`
	SessionID string    `json:"session_id" yaml:"session_id"`
	Kind      string    `json:"kind"       yaml:"kind"`
	Preview   string    `json:"preview"    yaml:"preview"`
	Distance  float64   `json:"distance"   yaml:"distance"`
}

// PendingItem is an item that has text but no embedding yet.
type PendingItem struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
}
