package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soleprint/hub/internal/embeddings"
	"github.com/soleprint/hub/internal/models"
)

// Embedder produces tagged embeddings for footprint images.
// Satisfied by embeddings.FallbackChain.
type Embedder interface {
	Embed(ctx context.Context, image []byte) (embeddings.Result, error)
}

// Service is the image-facing entry point: it embeds the uploaded footprint
// image (tagging which client produced the vector) and hands the embedding to
// the aggregator.
type Service struct {
	embedder   Embedder
	aggregator *Aggregator
	logger     *slog.Logger
}

// NewService creates a retrieval service.
// A nil logger falls back to slog.Default().
func NewService(embedder Embedder, aggregator *Aggregator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{embedder: embedder, aggregator: aggregator, logger: logger}
}

// QueryImage embeds the image and runs the retrieval flow. The outcome's
// embedding-source label names the client that produced the vector.
func (s *Service) QueryImage(ctx context.Context, image []byte) (models.QueryOutcome, error) {
	s.logger.Info("generating embedding for query image", "bytes", len(image))

	res, err := s.embedder.Embed(ctx, image)
	if err != nil {
		return models.QueryOutcome{}, fmt.Errorf("generate embedding: %w", err)
	}

	return s.aggregator.Query(ctx, res.Embedding, res.Source)
}

// QueryEmbedding runs the retrieval flow for a pre-computed embedding.
// An empty source defaults to the "pre-computed" label.
func (s *Service) QueryEmbedding(ctx context.Context, embedding []float32, source string) (models.QueryOutcome, error) {
	if source == "" {
		source = embeddings.SourcePrecomputed
	}

	return s.aggregator.Query(ctx, embedding, source)
}
