package jobs

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/riverqueue/river"
	"golang.org/x/time/rate"

	"github.com/soleprint/hub/internal/apperrors"
	"github.com/soleprint/hub/internal/embeddings"
)

// EmbeddingUpdater sets the embedding on a stored footprint.
// This allows the worker to persist results without knowing the concrete store.
type EmbeddingUpdater interface {
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

// ImageLoader reads the footprint image bytes for a job. Defaults to
// os.ReadFile; tests substitute an in-memory loader.
type ImageLoader func(path string) ([]byte, error)

// EmbeddingWorkerDeps holds the dependencies for the embedding worker.
type EmbeddingWorkerDeps struct {
	Embedder    Embedder
	Updater     EmbeddingUpdater
	LoadImage   ImageLoader
	RateLimiter *rate.Limiter
}

// Embedder produces a tagged embedding for an image (embeddings.FallbackChain).
type Embedder interface {
	Embed(ctx context.Context, image []byte) (embeddings.Result, error)
}

// EmbeddingWorker processes footprint embedding jobs.
type EmbeddingWorker struct {
	river.WorkerDefaults[FootprintEmbeddingArgs]
	deps EmbeddingWorkerDeps
}

// NewEmbeddingWorker creates a new embedding worker with the given dependencies.
func NewEmbeddingWorker(deps EmbeddingWorkerDeps) *EmbeddingWorker {
	if deps.LoadImage == nil {
		deps.LoadImage = os.ReadFile
	}
	return &EmbeddingWorker{deps: deps}
}

// Work processes an embedding job.
func (w *EmbeddingWorker) Work(ctx context.Context, job *river.Job[FootprintEmbeddingArgs]) error {
	args := job.Args

	slog.Debug("processing footprint embedding job",
		"job_id", job.ID,
		"footprint_id", args.FootprintID,
		"image_path", args.ImagePath,
	)

	// Wait for rate limit token if configured
	if w.deps.RateLimiter != nil {
		if err := w.deps.RateLimiter.Wait(ctx); err != nil {
			return err
		}
	}

	image, err := w.deps.LoadImage(args.ImagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("footprint image missing, dropping job",
				"job_id", job.ID,
				"footprint_id", args.FootprintID,
				"image_path", args.ImagePath,
			)
			// A missing file won't reappear on retry.
			return nil
		}
		return err
	}

	res, err := w.deps.Embedder.Embed(ctx, image)
	if err != nil {
		slog.Error("failed to generate footprint embedding",
			"job_id", job.ID,
			"footprint_id", args.FootprintID,
			"error", err,
		)
		return err // River will retry based on configuration
	}

	err = w.deps.Updater.UpdateEmbedding(ctx, args.FootprintID, res.Embedding)
	if err != nil {
		// Check if the footprint was deleted while the job was queued
		var notFoundErr *apperrors.NotFoundError
		if errors.As(err, &notFoundErr) {
			slog.Info("footprint deleted before embedding job completed",
				"job_id", job.ID,
				"footprint_id", args.FootprintID,
			)
			return nil
		}

		slog.Error("failed to persist footprint embedding",
			"job_id", job.ID,
			"footprint_id", args.FootprintID,
			"error", err,
		)
		return err // Retry on other errors
	}

	slog.Info("footprint embedding generated",
		"job_id", job.ID,
		"footprint_id", args.FootprintID,
		"source", res.Source,
	)

	return nil
}
