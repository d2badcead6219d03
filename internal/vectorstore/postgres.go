package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/pgvector/pgvector-go"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soleprint/hub/internal/apperrors"
	"github.com/soleprint/hub/internal/models"
)

const footprintsTable = "footprints"

// PostgresStore persists footprint records in Postgres with a pgvector
// embedding column. Similarity search is delegated to the database: cosine
// distance (<=>) with score = 1 - distance, ordered ascending by distance with
// ascending id as the tie-break. This is still an exact scan; no ANN index is
// created on the embedding column.
type PostgresStore struct {
	db     *pgxpool.Pool
	dim    int
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over the given pool. dim is the fixed
// embedding dimension for the footprints table; a nil logger falls back to
// slog.Default().
func NewPostgresStore(db *pgxpool.Pool, dim int, logger *slog.Logger) *PostgresStore {
	if dim <= 0 {
		dim = DefaultDimension
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresStore{db: db, dim: dim, logger: logger}
}

// Dimension returns the store-wide embedding dimension.
func (s *PostgresStore) Dimension() int { return s.dim }

// CreateSchema creates the vector extension and the footprints table.
// When dropExisting is true the table is dropped first.
func (s *PostgresStore) CreateSchema(ctx context.Context, dropExisting bool) error {
	if _, err := s.db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return apperrors.NewStorageError("create vector extension", err)
	}

	if dropExisting {
		if _, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS `+footprintsTable); err != nil {
			return apperrors.NewStorageError("drop footprints table", err)
		}

		s.logger.Info("dropped existing footprints table")
	}

	// The embedding column is nullable: records ingested before their vector is
	// generated wait for the backfill worker. TopK excludes NULL embeddings.
	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			image_path TEXT,
			metadata   JSONB NOT NULL DEFAULT '{}',
			embedding  VECTOR(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, footprintsTable, s.dim)

	if _, err := s.db.Exec(ctx, createSQL); err != nil {
		return apperrors.NewStorageError("create footprints table", err)
	}

	return nil
}

// Insert upserts a footprint by id: on conflict the metadata, image path, and
// embedding are replaced while created_at keeps its original value.
func (s *PostgresStore) Insert(ctx context.Context, rec models.Footprint) error {
	if err := validateRecord(rec, s.dim); err != nil {
		return err
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO `+footprintsTable+` (id, image_path, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET image_path = EXCLUDED.image_path, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
		rec.ID, rec.ImagePath, rec.Metadata, pgvector.NewVector(rec.Embedding),
	)
	if err != nil {
		return apperrors.NewStorageError("footprints upsert", err)
	}

	return nil
}

// InsertPending upserts a footprint without an embedding so the backfill
// worker can generate the vector later.
func (s *PostgresStore) InsertPending(ctx context.Context, rec models.Footprint) error {
	if rec.ID == "" {
		return apperrors.NewValidationError("id", "id must be non-empty")
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO `+footprintsTable+` (id, image_path, metadata, embedding)
		VALUES ($1, $2, $3, NULL)
		ON CONFLICT (id)
		DO UPDATE SET image_path = EXCLUDED.image_path, metadata = EXCLUDED.metadata`,
		rec.ID, rec.ImagePath, rec.Metadata,
	)
	if err != nil {
		return apperrors.NewStorageError("footprints insert pending", err)
	}

	return nil
}

// UpdateEmbedding sets the embedding for an existing footprint. Returns
// NotFoundError when no row matches.
func (s *PostgresStore) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	if len(embedding) != s.dim {
		return apperrors.NewValidationError("embedding",
			fmt.Sprintf("embedding dimension %d does not match store dimension %d", len(embedding), s.dim))
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE `+footprintsTable+` SET embedding = $2 WHERE id = $1`,
		id, pgvector.NewVector(embedding),
	)
	if err != nil {
		return apperrors.NewStorageError("footprints update embedding", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("footprint", "footprint "+id+" not found")
	}

	return nil
}

// PendingFootprint identifies a record awaiting embedding generation.
type PendingFootprint struct {
	ID        string
	ImagePath string
}

// ListPending returns footprints whose embedding is NULL, oldest first.
func (s *PostgresStore) ListPending(ctx context.Context) ([]PendingFootprint, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, COALESCE(image_path, '') FROM `+footprintsTable+` WHERE embedding IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, apperrors.NewStorageError("list pending footprints", err)
	}
	defer rows.Close()

	var pending []PendingFootprint

	for rows.Next() {
		var p PendingFootprint
		if err := rows.Scan(&p.ID, &p.ImagePath); err != nil {
			return nil, apperrors.NewStorageError("scan pending footprint", err)
		}

		pending = append(pending, p)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterating pending footprints", err)
	}

	return pending, nil
}

// InsertBatch inserts records in chunks of batchSize. A failure on one record
// is logged, counted, and the batch continues; only a canceled context aborts.
func (s *PostgresStore) InsertBatch(ctx context.Context, recs []models.Footprint, batchSize int) (BatchResult, error) {
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

		s.logger.Info("batch inserted", "batch", start/batchSize+1, "total", result.Inserted)
	}

	return result, nil
}

// TopK returns up to k matches ordered by cosine similarity descending.
// Rows with a NULL embedding or an undefined (NaN) similarity are excluded in
// SQL; a second NaN guard on scan covers driver edge cases.
func (s *PostgresStore) TopK(ctx context.Context, query []float32, k int) ([]models.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	if len(query) != s.dim {
		return nil, apperrors.NewValidationError("query",
			fmt.Sprintf("query dimension %d does not match store dimension %d", len(query), s.dim))
	}

	queryVec := pgvector.NewVector(query)

	rows, err := s.db.Query(ctx, `
		SELECT id, metadata, embedding, (1 - (embedding <=> $1))::float8 AS score
		FROM `+footprintsTable+`
		WHERE embedding IS NOT NULL
		  AND NOT (embedding <=> $1)::float8 = 'NaN'::float8
		ORDER BY embedding <=> $1, id
		LIMIT $2`, queryVec, k)
	if err != nil {
		return nil, apperrors.NewStorageError("top-k search", err)
	}
	defer rows.Close()

	var matches []models.Match

	for rows.Next() {
		var (
			id       string
			metadata map[string]any
			vec      pgvector.Vector
			score    float64
		)

		if err := rows.Scan(&id, &metadata, &vec, &score); err != nil {
			return nil, apperrors.NewStorageError("scan top-k row", err)
		}

		if math.IsNaN(score) {
			s.logger.Warn("undefined similarity, skipping record", "id", id)

			continue
		}

		matches = append(matches, models.Match{
			Result: models.SearchResult{
				ID:       id,
				Metadata: metadata,
				Score:    score,
			},
			Embedding: vec.Slice(),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterating top-k rows", err)
	}

	return matches, nil
}

// Count returns the total number of stored records, including pending ones.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64

	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+footprintsTable).Scan(&count)
	if err != nil {
		return 0, apperrors.NewStorageError("count footprints", err)
	}

	return count, nil
}

// Delete removes the footprint with the given id. Returns NotFoundError when
// no row matches.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM `+footprintsTable+` WHERE id = $1`, id)
	if err != nil {
		return apperrors.NewStorageError("footprints delete", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("footprint", "footprint "+id+" not found")
	}

	return nil
}

// Clear removes all footprint records.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `TRUNCATE TABLE `+footprintsTable); err != nil {
		return apperrors.NewStorageError("footprints clear", err)
	}

	s.logger.Info("cleared all footprint records")

	return nil
}
