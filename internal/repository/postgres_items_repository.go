package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/trustify/backend/internal/apperrors"
	"github.com/trustify/backend/internal/models"
)

// PostgresItemsRepository calls the item procedures directly over a pgx pool.
// The pool must have the pgvector types registered (see database.NewPostgresPool).
type PostgresItemsRepository struct {
	db *pgxpool.Pool
}

// NewPostgresItemsRepository creates an item store backed by a direct database connection.
func NewPostgresItemsRepository(db *pgxpool.Pool) *PostgresItemsRepository {
	return &PostgresItemsRepository{db: db}
}

// UpsertTextItem inserts a text item and returns its id.
func (r *PostgresItemsRepository) UpsertTextItem(ctx context.Context, req models.UpsertTextItemRequest) (uuid.UUID, error) {
	var id *uuid.UUID

	err := r.db.QueryRow(ctx,
		`SELECT upsert_text_item(p_session_id => $1, p_text => $2, p_preview => $3, p_source => $4)`,
		req.SessionID, req.Text, req.Preview, req.Source,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", ProcUpsertTextItem, err)
	}

	if id == nil || *id == uuid.Nil {
		return uuid.Nil, apperrors.NewEmptyResultError(ProcUpsertTextItem)
	}

	return *id, nil
}

// UpdateAIResult stores the provider label and score for an item.
func (r *PostgresItemsRepository) UpdateAIResult(ctx context.Context, result models.AIResult) error {
	_, err := r.db.Exec(ctx,
		`SELECT update_item_ai_result(p_id => $1, p_provider => $2, p_label => $3, p_score => $4)`,
		result.ItemID, result.Provider, result.Label, result.Score,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", ProcUpdateItemAIResult, err)
	}

	return nil
}

// UpdateEmbedding stores the vector for an item; the procedure normalizes it.
func (r *PostgresItemsRepository) UpdateEmbedding(ctx context.Context, embedding models.Embedding) error {
	_, err := r.db.Exec(ctx,
		`SELECT update_item_embedding_normalized(p_id => $1, p_vec => $2)`,
		embedding.ItemID, pgvector.NewVector(embedding.Vector),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", ProcUpdateItemEmbedding, err)
	}

	return nil
}

// SearchTopK returns the k nearest items by cosine distance. A nil session searches all sessions.
func (r *PostgresItemsRepository) SearchTopK(ctx context.Context, req models.SearchRequest) ([]models.SearchHit, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, COALESCE(kind, ''), COALESCE(preview, ''), distance
		FROM search_topk(p_session_id => $1, p_vec => $2, p_k => $3, p_only_nonzero => $4)`,
		req.SessionID, pgvector.NewVector(req.Vector), req.K, req.OnlyNonZero,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ProcSearchTopK, err)
	}
	defer rows.Close()

	hits := []models.SearchHit{}

	for rows.Next() {
		var hit models.SearchHit
		if err := rows.Scan(&hit.ID, &hit.SessionID, &hit.Kind, &hit.Preview, &hit.Distance); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", ProcSearchTopK, err)
		}

		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", ProcSearchTopK, err)
	}

	return hits, nil
}

// ListItemsMissingEmbedding returns up to limit items with text and a null embedding, ordered by id
// so a limited run picks a stable set. The ids are random, so this is not insertion order.
// A nil session lists every session. limit <= 0 means no limit.
func (r *PostgresItemsRepository) ListItemsMissingEmbedding(
	ctx context.Context, sessionID *string, limit int,
) ([]models.PendingItem, error) {
	var rowLimit *int
	if limit > 0 {
		rowLimit = &limit
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, text
		FROM items
		WHERE embedding IS NULL
		  AND text <> ''
		  AND ($1::text IS NULL OR session_id = $1)
		ORDER BY id
		LIMIT $2`,
		sessionID, rowLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("list items missing embedding: %w", err)
	}
	defer rows.Close()

	items := []models.PendingItem{}

	for rows.Next() {
		var item models.PendingItem
		if err := rows.Scan(&item.ID, &item.SessionID, &item.Text); err != nil {
			return nil, fmt.Errorf("list items missing embedding: scan: %w", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items missing embedding: %w", err)
	}

	return items, nil
}
