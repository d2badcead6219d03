package jobs

import (
	"context"
)

// JobInserter is an interface for inserting jobs into the queue.
// This allows callers to enqueue jobs without knowing about River directly.
type JobInserter interface {
	// InsertFootprintEmbeddingJob enqueues a footprint embedding job.
	// Returns an error if the job could not be inserted.
	InsertFootprintEmbeddingJob(ctx context.Context, args FootprintEmbeddingArgs) error
}
