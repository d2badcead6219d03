package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/soleprint/hub/internal/apperrors"
	"github.com/soleprint/hub/internal/models"
	"github.com/soleprint/hub/pkg/vector"
)

// MemoryStore keeps footprint records in process memory and answers top-k
// queries with a brute-force linear scan over every stored embedding. It backs
// unit tests and small single-node deployments; the Postgres store delegates
// the same contract to pgvector.
type MemoryStore struct {
	mu      sync.RWMutex
	dim     int
	logger  *slog.Logger
	records map[string]models.Footprint
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store with the given embedding
// dimension. A nil logger falls back to slog.Default().
func NewMemoryStore(dim int, logger *slog.Logger) *MemoryStore {
	if dim <= 0 {
		dim = DefaultDimension
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &MemoryStore{
		dim:     dim,
		logger:  logger,
		records: make(map[string]models.Footprint),
	}
}

// Dimension returns the store-wide embedding dimension.
func (s *MemoryStore) Dimension() int { return s.dim }

// Insert upserts a record by id. CreatedAt is set on first insert and never
// updated on conflict, matching the Postgres store.
func (s *MemoryStore) Insert(_ context.Context, rec models.Footprint) error {
	if err := validateRecord(rec, s.dim); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[rec.ID]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	rec.Embedding = append([]float32(nil), rec.Embedding...)
	s.records[rec.ID] = rec

	return nil
}

// InsertBatch inserts records in chunks of batchSize. A failure on one record
// is recorded and the batch continues.
func (s *MemoryStore) InsertBatch(ctx context.Context, recs []models.Footprint, batchSize int) (BatchResult, error) {
	batchSize = normalizeBatchSize(batchSize)

	var result BatchResult

	for start := 0; start < len(recs); start += batchSize {
		if err := ctx.Err(); err != nil {
			return result, apperrors.NewStorageError("insert batch", err)
		}

		end := min(start+batchSize, len(recs))

		for _, rec := range recs[start:end] {
			if err := s.Insert(ctx, rec); err != nil {
				s.logger.Error("batch insert: record failed", "id", rec.ID, "error", err)
				result.recordFailure(rec.ID, err)

				continue
			}

			result.Inserted++
		}

		s.logger.Debug("batch inserted", "batch", start/batchSize+1, "total", result.Inserted)
	}

	return result, nil
}

// TopK scans every stored embedding, scoring each against the query under
// cosine similarity. Zero-norm rows are skipped with a warning. Results are
// ordered by similarity descending, then ascending id for equal scores.
func (s *MemoryStore) TopK(_ context.Context, query []float32, k int) ([]models.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	if len(query) != s.dim {
		return nil, apperrors.NewValidationError("query",
			fmt.Sprintf("query dimension %d does not match store dimension %d", len(query), s.dim))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]models.Match, 0, len(s.records))

	for id, rec := range s.records {
		sim, ok := vector.Cosine(query, rec.Embedding)
		if !ok {
			s.logger.Warn("undefined similarity, skipping record", "id", id)

			continue
		}

		matches = append(matches, models.Match{
			Result: models.SearchResult{
				ID:       id,
				Metadata: rec.Metadata,
				Score:    sim,
			},
			Embedding: rec.Embedding,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Result.Score != matches[j].Result.Score {
			return matches[i].Result.Score > matches[j].Result.Score
		}

		return matches[i].Result.ID < matches[j].Result.ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}

	return matches, nil
}

// Count returns the total number of stored records.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.records)), nil
}

// Delete removes the record with the given id. Returns NotFoundError when no
// such record exists.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return apperrors.NewNotFoundError("footprint", "footprint "+id+" not found")
	}

	delete(s.records, id)

	return nil
}

// Clear removes all records.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]models.Footprint)

	return nil
}
