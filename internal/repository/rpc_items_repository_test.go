package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustify/backend/internal/apperrors"
	"github.com/trustify/backend/internal/models"
	"github.com/trustify/backend/pkg/supabase"
)

// newRPCServer routes /rest/v1/rpc/{fn} to handlers keyed by procedure name.
func newRPCServer(t *testing.T, handlers map[string]func(params map[string]any) (int, string)) *RPCItemsRepository {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn := strings.TrimPrefix(r.URL.Path, "/rest/v1/rpc/")

		handler, ok := handlers[fn]
		if !ok {
			t.Errorf("unexpected procedure %q", fn)
			w.WriteHeader(http.StatusNotFound)

			return
		}

		var params map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&params))

		status, body := handler(params)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client, err := supabase.NewClient(supabase.Options{URL: server.URL, AnonKey: "anon"})
	require.NoError(t, err)

	return NewRPCItemsRepository(client)
}

func TestRPCItemsRepository_UpsertTextItem(t *testing.T) {
	id := uuid.New()

	t.Run("returns inserted id", func(t *testing.T) {
		repo := newRPCServer(t, map[string]func(map[string]any) (int, string){
			ProcUpsertTextItem: func(params map[string]any) (int, string) {
				assert.Equal(t, map[string]any{
					"p_session_id": "sess-ui-demo",
					"p_text":       "Hello from UI",
					"p_preview":    "Hello from UI",
					"p_source":     "web",
				}, params)

				return http.StatusOK, `"` + id.String() + `"`
			},
		})

		got, err := repo.UpsertTextItem(context.Background(), models.UpsertTextItemRequest{
			SessionID: "sess-ui-demo", Text: "Hello from UI", Preview: "Hello from UI", Source: "web",
		})
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("null id is an empty result", func(t *testing.T) {
		repo := newRPCServer(t, map[string]func(map[string]any) (int, string){
			ProcUpsertTextItem: func(map[string]any) (int, string) { return http.StatusOK, "null" },
		})

		_, err := repo.UpsertTextItem(context.Background(), models.UpsertTextItemRequest{SessionID: "s"})
		require.ErrorIs(t, err, apperrors.ErrEmptyResult)
		assert.Contains(t, err.Error(), ProcUpsertTextItem)
	})

	t.Run("database error is returned", func(t *testing.T) {
		repo := newRPCServer(t, map[string]func(map[string]any) (int, string){
			ProcUpsertTextItem: func(map[string]any) (int, string) {
				return http.StatusBadRequest, `{"code":"23502","message":"null value in column \"text\""}`
			},
		})

		_, err := repo.UpsertTextItem(context.Background(), models.UpsertTextItemRequest{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, apperrors.ErrEmptyResult)
		assert.Equal(t, http.StatusBadRequest, supabase.StatusCode(err))
	})
}

func TestRPCItemsRepository_Updates(t *testing.T) {
	id := uuid.New()

	repo := newRPCServer(t, map[string]func(map[string]any) (int, string){
		ProcUpdateItemAIResult: func(params map[string]any) (int, string) {
			assert.Equal(t, id.String(), params["p_id"])
			assert.Equal(t, "azure", params["p_provider"])
			assert.Equal(t, "safe", params["p_label"])
			assert.InDelta(t, 0.97, params["p_score"], 1e-9)

			return http.StatusNoContent, ""
		},
		ProcUpdateItemEmbedding: func(params map[string]any) (int, string) {
			assert.Equal(t, id.String(), params["p_id"])
			assert.Len(t, params["p_vec"], 3)

			return http.StatusOK, ""
		},
	})

	ctx := context.Background()
	require.NoError(t, repo.UpdateAIResult(ctx, models.AIResult{ItemID: id, Provider: "azure", Label: "safe", Score: 0.97}))
	require.NoError(t, repo.UpdateEmbedding(ctx, models.Embedding{ItemID: id, Vector: []float32{0.12, -0.03, 0.08}}))
}

func TestRPCItemsRepository_SearchTopK(t *testing.T) {
	hitID := uuid.New()

	t.Run("decodes hits and sends null session for all sessions", func(t *testing.T) {
		repo := newRPCServer(t, map[string]func(map[string]any) (int, string){
			ProcSearchTopK: func(params map[string]any) (int, string) {
				assert.Contains(t, params, "p_session_id")
				assert.Nil(t, params["p_session_id"])
				assert.InDelta(t, 5, params["p_k"], 0)
				assert.Equal(t, true, params["p_only_nonzero"])

				return http.StatusOK, `[{"id":"` + hitID.String() + `","session_id":"sess-ui-demo","kind":"text","preview":"Hello from UI","distance":0.01}]`
			},
		})

		hits, err := repo.SearchTopK(context.Background(), models.SearchRequest{Vector: []float32{1}, K: 5, OnlyNonZero: true})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, hitID, hits[0].ID)
		assert.Equal(t, "text", hits[0].Kind)
		assert.InDelta(t, 0.01, hits[0].Distance, 1e-9)
	})

	t.Run("empty list is valid", func(t *testing.T) {
		repo := newRPCServer(t, map[string]func(map[string]any) (int, string){
			ProcSearchTopK: func(map[string]any) (int, string) { return http.StatusOK, "[]" },
		})

		hits, err := repo.SearchTopK(context.Background(), models.SearchRequest{K: 5})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("null is an empty result", func(t *testing.T) {
		repo := newRPCServer(t, map[string]func(map[string]any) (int, string){
			ProcSearchTopK: func(map[string]any) (int, string) { return http.StatusOK, "null" },
		})

		_, err := repo.SearchTopK(context.Background(), models.SearchRequest{K: 5})
		require.ErrorIs(t, err, apperrors.ErrEmptyResult)
	})
}
