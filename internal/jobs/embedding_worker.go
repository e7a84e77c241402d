package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/riverqueue/river"
	"golang.org/x/time/rate"

	"github.com/trustify/backend/internal/embeddings"
	"github.com/trustify/backend/internal/models"
	"github.com/trustify/backend/internal/observability"
	vectors "github.com/trustify/backend/pkg/embeddings"
)

// ErrEmptyJobText cancels a job whose item text is blank.
var ErrEmptyJobText = errors.New("embedding job has no text")

// EmbeddingUpdater stores an item vector. Implemented by both item store backends.
type EmbeddingUpdater interface {
	UpdateEmbedding(ctx context.Context, embedding models.Embedding) error
}

// EmbeddingWorkerDeps holds the dependencies for the embedding worker.
type EmbeddingWorkerDeps struct {
	EmbeddingClient embeddings.Client
	Updater         EmbeddingUpdater
	// RateLimiter paces provider calls across all workers. Optional.
	RateLimiter *rate.Limiter
	// Metrics records each attempt. Optional.
	Metrics observability.JobMetrics
	Logger  *slog.Logger
}

// EmbeddingWorker embeds item text and stores the vector with update_item_embedding_normalized.
type EmbeddingWorker struct {
	river.WorkerDefaults[EmbeddingJobArgs]
	deps EmbeddingWorkerDeps
}

// NewEmbeddingWorker creates a new embedding worker with the given dependencies.
func NewEmbeddingWorker(deps EmbeddingWorkerDeps) *EmbeddingWorker {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &EmbeddingWorker{deps: deps}
}

// Work processes one embedding job. Provider and store errors are returned so River retries them;
// blank text and wrong-sized vectors cancel the job since a retry cannot fix them.
func (w *EmbeddingWorker) Work(ctx context.Context, job *river.Job[EmbeddingJobArgs]) error {
	start := time.Now()
	outcome, err := w.embed(ctx, job)

	if w.deps.Metrics != nil {
		w.deps.Metrics.RecordEmbeddingJob(ctx, outcome, time.Since(start))
	}

	return err
}

func (w *EmbeddingWorker) embed(ctx context.Context, job *river.Job[EmbeddingJobArgs]) (string, error) {
	args := job.Args
	logger := w.deps.Logger.With("job_id", job.ID, "item_id", args.ItemID)

	if strings.TrimSpace(args.Text) == "" {
		return observability.JobOutcomeCancelled, river.JobCancel(ErrEmptyJobText)
	}

	if w.deps.RateLimiter != nil {
		if err := w.deps.RateLimiter.Wait(ctx); err != nil {
			return observability.JobOutcomeRetry, err
		}
	}

	logger.DebugContext(ctx, "Embedding item", "text_length", len(args.Text))

	vec, err := w.deps.EmbeddingClient.CreateEmbedding(ctx, args.Text)
	if err != nil {
		return observability.JobOutcomeRetry, fmt.Errorf("create embedding: %w", err)
	}

	if err := vectors.CheckDimensions(vec, models.EmbeddingDimensions); err != nil {
		return observability.JobOutcomeCancelled, river.JobCancel(err)
	}

	if err := w.deps.Updater.UpdateEmbedding(ctx, models.Embedding{ItemID: args.ItemID, Vector: vec}); err != nil {
		return observability.JobOutcomeRetry, fmt.Errorf("store embedding: %w", err)
	}

	logger.InfoContext(ctx, "Item embedding stored")

	return observability.JobOutcomeCompleted, nil
}
