// Package jobs runs item embedding backfills on River.
package jobs

import (
	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// QueueEmbeddings is the River queue for item embedding jobs.
const QueueEmbeddings = "embeddings"

// EmbeddingJobArgs asks a worker to embed one item's text and store the vector.
// Uniqueness is by ItemID so a second backfill does not queue the same item twice.
type EmbeddingJobArgs struct {
	ItemID uuid.UUID `json:"item_id" river:"unique"`
	Text   string    `json:"text"`
}

// Kind returns the job type identifier for River.
func (EmbeddingJobArgs) Kind() string { return "item_embedding" }

var _ river.JobArgs = EmbeddingJobArgs{}
