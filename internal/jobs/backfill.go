package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soleprint/hub/internal/vectorstore"
)

// PendingLister lists footprints that are stored without an embedding.
type PendingLister interface {
	ListPending(ctx context.Context) ([]vectorstore.PendingFootprint, error)
}

// BackfillStats holds statistics from a backfill operation.
type BackfillStats struct {
	Enqueued int
	Errors   int
}

// Backfill enqueues embedding jobs for all footprints that are missing
// embeddings. Individual enqueue failures are logged and counted, not fatal.
func Backfill(ctx context.Context, store PendingLister, inserter JobInserter) (*BackfillStats, error) {
	pending, err := store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending footprints: %w", err)
	}

	stats := &BackfillStats{}

	for _, fp := range pending {
		err := inserter.InsertFootprintEmbeddingJob(ctx, FootprintEmbeddingArgs{
			FootprintID: fp.ID,
			ImagePath:   fp.ImagePath,
		})
		if err != nil {
			slog.Error("failed to enqueue footprint embedding job", "id", fp.ID, "error", err)
			stats.Errors++
			continue
		}
		stats.Enqueued++
	}

	return stats, nil
}
