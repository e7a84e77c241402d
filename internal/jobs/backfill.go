package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trustify/backend/internal/models"
)

// PendingItemSource lists items that still need an embedding.
type PendingItemSource interface {
	ListItemsMissingEmbedding(ctx context.Context, sessionID *string, limit int) ([]models.PendingItem, error)
}

// BackfillParams selects the items to enqueue. A nil SessionID covers every session; Limit <= 0 means no limit.
type BackfillParams struct {
	SessionID *string
	Limit     int
}

// BackfillStats counts the outcome of one backfill.
type BackfillStats struct {
	Found      int `json:"found"      yaml:"found"`
	Enqueued   int `json:"enqueued"   yaml:"enqueued"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
	Errors     int `json:"errors"     yaml:"errors"`
	// JobIDs are the newly inserted jobs, for callers that wait on them.
	JobIDs []int64 `json:"-" yaml:"-"`
}

// Backfill enqueues an embedding job for every item missing an embedding.
// A failed insert is logged and counted; the remaining items are still enqueued.
func Backfill(
	ctx context.Context, source PendingItemSource, inserter JobInserter, params BackfillParams, logger *slog.Logger,
) (*BackfillStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	items, err := source.ListItemsMissingEmbedding(ctx, params.SessionID, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("backfill: %w", err)
	}

	stats := &BackfillStats{Found: len(items)}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		res, err := inserter.InsertEmbeddingJob(ctx, EmbeddingJobArgs{ItemID: item.ID, Text: item.Text})
		if err != nil {
			logger.ErrorContext(ctx, "Failed to enqueue embedding job", "item_id", item.ID, "error", err)

			stats.Errors++

			continue
		}

		if res.Duplicate {
			stats.Duplicates++

			continue
		}

		stats.Enqueued++
		stats.JobIDs = append(stats.JobIDs, res.JobID)
	}

	logger.InfoContext(ctx, "Embedding backfill enqueued",
		"found", stats.Found, "enqueued", stats.Enqueued, "duplicates", stats.Duplicates, "errors", stats.Errors)

	return stats, nil
}
