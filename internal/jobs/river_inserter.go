package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// RiverJobInserter implements JobInserter using the River client.
type RiverJobInserter struct {
	client      *river.Client[pgx.Tx]
	maxAttempts int
}

// NewRiverJobInserter creates a River-based job inserter. maxAttempts <= 0 keeps River's default.
func NewRiverJobInserter(client *river.Client[pgx.Tx], maxAttempts int) *RiverJobInserter {
	return &RiverJobInserter{client: client, maxAttempts: maxAttempts}
}

// InsertEmbeddingJob enqueues an embedding job on QueueEmbeddings, skipping items that already have an unfinished job.
func (r *RiverJobInserter) InsertEmbeddingJob(ctx context.Context, args EmbeddingJobArgs) (InsertResult, error) {
	res, err := r.client.Insert(ctx, args, &river.InsertOpts{
		Queue:       QueueEmbeddings,
		MaxAttempts: r.maxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
			// River requires JobStatePending whenever ByState is set.
			ByState: []rivertype.JobState{
				rivertype.JobStatePending,
				rivertype.JobStateAvailable,
				rivertype.JobStateRunning,
				rivertype.JobStateRetryable,
				rivertype.JobStateScheduled,
			},
		},
	})
	if err != nil {
		return InsertResult{}, fmt.Errorf("insert embedding job for item %s: %w", args.ItemID, err)
	}

	return InsertResult{JobID: res.Job.ID, Duplicate: res.UniqueSkippedAsDuplicate}, nil
}
