package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/trustify/backend/internal/apperrors"
	"github.com/trustify/backend/internal/models"
	"github.com/trustify/backend/pkg/supabase"
)

// RPCCaller invokes a PostgREST stored procedure. Implemented by *supabase.Client.
type RPCCaller interface {
	RPC(ctx context.Context, fn string, params, out any) error
}

// RPCItemsRepository stores items by calling the stored procedures over PostgREST.
type RPCItemsRepository struct {
	rpc RPCCaller
}

// NewRPCItemsRepository creates an item store backed by PostgREST RPCs.
func NewRPCItemsRepository(rpc RPCCaller) *RPCItemsRepository {
	return &RPCItemsRepository{rpc: rpc}
}

// UpsertTextItem inserts a text item and returns its id. A null id is an empty result.
func (r *RPCItemsRepository) UpsertTextItem(ctx context.Context, req models.UpsertTextItemRequest) (uuid.UUID, error) {
	params := upsertTextItemParams{
		SessionID: req.SessionID,
		Text:      req.Text,
		Preview:   req.Preview,
		Source:    req.Source,
	}

	var id uuid.UUID
	if err := r.rpc.RPC(ctx, ProcUpsertTextItem, params, &id); err != nil {
		return uuid.Nil, mapRPCError(ProcUpsertTextItem, err)
	}

	if id == uuid.Nil {
		return uuid.Nil, apperrors.NewEmptyResultError(ProcUpsertTextItem)
	}

	return id, nil
}

// UpdateAIResult stores the provider label and score for an item.
func (r *RPCItemsRepository) UpdateAIResult(ctx context.Context, result models.AIResult) error {
	params := updateAIResultParams{
		ID:       result.ItemID.String(),
		Provider: result.Provider,
		Label:    result.Label,
		Score:    result.Score,
	}

	return mapRPCError(ProcUpdateItemAIResult, r.rpc.RPC(ctx, ProcUpdateItemAIResult, params, nil))
}

// UpdateEmbedding stores the vector for an item; the procedure normalizes it.
func (r *RPCItemsRepository) UpdateEmbedding(ctx context.Context, embedding models.Embedding) error {
	params := updateEmbeddingParams{
		ID:     embedding.ItemID.String(),
		Vector: embedding.Vector,
	}

	return mapRPCError(ProcUpdateItemEmbedding, r.rpc.RPC(ctx, ProcUpdateItemEmbedding, params, nil))
}

// SearchTopK returns the k nearest items. An empty list is a valid result; null is not.
func (r *RPCItemsRepository) SearchTopK(ctx context.Context, req models.SearchRequest) ([]models.SearchHit, error) {
	var hits []models.SearchHit
	if err := r.rpc.RPC(ctx, ProcSearchTopK, newSearchTopKParams(req), &hits); err != nil {
		return nil, mapRPCError(ProcSearchTopK, err)
	}

	if hits == nil {
		return nil, apperrors.NewEmptyResultError(ProcSearchTopK)
	}

	return hits, nil
}

func mapRPCError(proc string, err error) error {
	if errors.Is(err, supabase.ErrEmptyResult) {
		return apperrors.NewEmptyResultError(proc)
	}

	return err
}
