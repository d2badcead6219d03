// Package vectorstore persists footprint records and answers exact top-k
// cosine-similarity queries. Two implementations share one contract: a
// Postgres/pgvector store that delegates the scan to the database, and an
// in-memory store that runs the same linear scan in process.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/soleprint/hub/internal/apperrors"
	"github.com/soleprint/hub/internal/models"
)

// DefaultDimension is the store-wide embedding dimension unless configured otherwise.
const DefaultDimension = 512

// DefaultBatchSize is the chunk size for batch inserts unless configured otherwise.
const DefaultBatchSize = 100

// maxBatchErrors caps how many per-record error messages a batch insert collects
// for reporting. Failures beyond the cap are still counted and logged.
const maxBatchErrors = 10

// Store is the persistence contract for footprint records.
//
// TopK computes cosine similarity between the query and every stored embedding
// (exact, no index), ordered by similarity descending with ascending id as the
// deterministic tie-break. Rows whose similarity is undefined (zero-norm
// vectors) are skipped, never scored 0. Connectivity or query failures surface
// as StorageError and are never retried here.
type Store interface {
	Insert(ctx context.Context, rec models.Footprint) error
	InsertBatch(ctx context.Context, recs []models.Footprint, batchSize int) (BatchResult, error)
	TopK(ctx context.Context, query []float32, k int) ([]models.Match, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Dimension() int
}

// BatchResult reports the outcome of a batch insert. A failure on one record
// never aborts the batch: the record is counted in Failed and processing
// continues. Callers infer partial failure by comparing Inserted against the
// submitted count; Errors holds the first few per-record messages.
type BatchResult struct {
	Inserted int      `json:"inserted"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

func (r *BatchResult) recordFailure(id string, err error) {
	r.Failed++
	if len(r.Errors) < maxBatchErrors {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", id, err))
	}
}

// validateRecord enforces the insert constraints shared by all stores:
// non-empty id and an embedding matching the store dimension.
func validateRecord(rec models.Footprint, dim int) error {
	if rec.ID == "" {
		return apperrors.NewValidationError("id", "id must be non-empty")
	}

	if len(rec.Embedding) != dim {
		return apperrors.NewValidationError("embedding",
			fmt.Sprintf("embedding dimension %d does not match store dimension %d", len(rec.Embedding), dim))
	}

	return nil
}

// normalizeBatchSize returns a usable chunk size for batch inserts.
func normalizeBatchSize(batchSize int) int {
	if batchSize <= 0 {
		return DefaultBatchSize
	}

	return batchSize
}
