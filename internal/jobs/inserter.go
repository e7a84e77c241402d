package jobs

import (
	"context"
)

// InsertResult reports what happened to one enqueue.
type InsertResult struct {
	JobID int64
	// Duplicate is set when an unfinished job for the same item already existed.
	Duplicate bool
}

// JobInserter enqueues embedding jobs without exposing River to callers.
type JobInserter interface {
	InsertEmbeddingJob(ctx context.Context, args EmbeddingJobArgs) (InsertResult, error)
}
