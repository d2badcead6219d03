package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soleprint/hub/internal/apperrors"
	"github.com/soleprint/hub/internal/embeddings"
	"github.com/soleprint/hub/internal/models"
)

type mockEmbedder struct {
	embedFunc func(ctx context.Context, image []byte) (embeddings.Result, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, image []byte) (embeddings.Result, error) {
	return m.embedFunc(ctx, image)
}

type mockSearcher struct {
	topKFunc func(ctx context.Context, query []float32, k int) ([]models.Match, error)
}

func (m *mockSearcher) TopK(ctx context.Context, query []float32, k int) ([]models.Match, error) {
	return m.topKFunc(ctx, query, k)
}

func match(id string, score float64, embedding []float32) models.Match {
	return models.Match{
		Result:    models.SearchResult{ID: id, Metadata: map[string]any{"image_path": id + ".png"}, Score: score},
		Embedding: embedding,
	}
}

func TestAggregator_Query(t *testing.T) {
	ctx := context.Background()

	t.Run("labels matches CASE A through C by rank", func(t *testing.T) {
		searcher := &mockSearcher{
			topKFunc: func(_ context.Context, _ []float32, k int) ([]models.Match, error) {
				assert.Equal(t, CasesPerQuery, k)

				return []models.Match{
					match("fp-001", 0.98, []float32{1, 0}),
					match("fp-007", 0.75, []float32{0, 1}),
					match("fp-003", 0.12, []float32{1, 1}),
				}, nil
			},
		}

		outcome, err := NewAggregator(searcher, nil).Query(ctx, []float32{1, 0}, "local")
		require.NoError(t, err)
		require.Len(t, outcome.Cases, 3)

		assert.Equal(t, "CASE A", outcome.Cases[0].Label)
		assert.Equal(t, "fp-001", outcome.Cases[0].ID)
		assert.Equal(t, "CASE B", outcome.Cases[1].Label)
		assert.Equal(t, "fp-007", outcome.Cases[1].ID)
		assert.Equal(t, "CASE C", outcome.Cases[2].Label)
		assert.Equal(t, "fp-003", outcome.Cases[2].ID)

		assert.Equal(t, map[string]any{"image_path": "fp-001.png"}, outcome.Cases[0].Metadata)
	})

	t.Run("scores are rounded to 4 decimals", func(t *testing.T) {
		searcher := &mockSearcher{
			topKFunc: func(context.Context, []float32, int) ([]models.Match, error) {
				return []models.Match{match("fp-001", 0.98765432, []float32{1})}, nil
			},
		}

		outcome, err := NewAggregator(searcher, nil).Query(ctx, []float32{1}, "local")
		require.NoError(t, err)
		require.Len(t, outcome.Cases, 1)
		assert.Equal(t, 0.9877, outcome.Cases[0].Score)
	})

	t.Run("over-returning searcher is truncated to 3 cases", func(t *testing.T) {
		searcher := &mockSearcher{
			topKFunc: func(context.Context, []float32, int) ([]models.Match, error) {
				return []models.Match{
					match("a", 0.9, []float32{1}),
					match("b", 0.8, []float32{1}),
					match("c", 0.7, []float32{1}),
					match("d", 0.6, []float32{1}),
					match("e", 0.5, []float32{1}),
				}, nil
			},
		}

		outcome, err := NewAggregator(searcher, nil).Query(ctx, []float32{1}, "local")
		require.NoError(t, err)
		assert.Len(t, outcome.Cases, 3)
		assert.Equal(t, 3, outcome.Metadata.ResultsFound)
	})

	t.Run("no matches yields zero cases without error", func(t *testing.T) {
		searcher := &mockSearcher{
			topKFunc: func(context.Context, []float32, int) ([]models.Match, error) {
				return nil, nil
			},
		}

		outcome, err := NewAggregator(searcher, nil).Query(ctx, []float32{1, 0}, "local")
		require.NoError(t, err)
		assert.Empty(t, outcome.Cases)
		assert.Nil(t, outcome.TargetEmbedding)
		assert.Zero(t, outcome.Metadata.ResultsFound)
		assert.Equal(t, "local", outcome.Metadata.EmbeddingSource)
		assert.NotEmpty(t, outcome.Metadata.Timestamp)
	})

	t.Run("query embedding is cleaned before searching", func(t *testing.T) {
		var received []float32

		searcher := &mockSearcher{
			topKFunc: func(_ context.Context, query []float32, _ int) ([]models.Match, error) {
				received = query

				return nil, nil
			},
		}

		nan := float32(math.NaN())
		inf := float32(math.Inf(1))

		_, err := NewAggregator(searcher, nil).Query(ctx, []float32{0.5, nan, inf, 0.25}, "pre-computed")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, 0, 0, 0.25}, received)
	})

	t.Run("target embedding is the mean of matched embeddings", func(t *testing.T) {
		searcher := &mockSearcher{
			topKFunc: func(context.Context, []float32, int) ([]models.Match, error) {
				return []models.Match{
					match("a", 0.9, []float32{1, 0}),
					match("b", 0.8, []float32{0, 1}),
				}, nil
			},
		}

		outcome, err := NewAggregator(searcher, nil).Query(ctx, []float32{1, 0}, "local")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, 0.5}, outcome.TargetEmbedding)
	})

	t.Run("matches without embeddings still produce cases", func(t *testing.T) {
		searcher := &mockSearcher{
			topKFunc: func(context.Context, []float32, int) ([]models.Match, error) {
				return []models.Match{match("a", 0.9, nil)}, nil
			},
		}

		outcome, err := NewAggregator(searcher, nil).Query(ctx, []float32{1, 0}, "local")
		require.NoError(t, err)
		assert.Len(t, outcome.Cases, 1)
		assert.Nil(t, outcome.TargetEmbedding)
	})

	t.Run("storage errors propagate wrapped", func(t *testing.T) {
		storeErr := apperrors.NewStorageError("top_k", errors.New("connection refused"))

		searcher := &mockSearcher{
			topKFunc: func(context.Context, []float32, int) ([]models.Match, error) {
				return nil, storeErr
			},
		}

		_, err := NewAggregator(searcher, nil).Query(ctx, []float32{1, 0}, "local")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrStorage)
	})

	t.Run("metadata carries source, timing and an ISO-8601 timestamp", func(t *testing.T) {
		searcher := &mockSearcher{
			topKFunc: func(context.Context, []float32, int) ([]models.Match, error) {
				return []models.Match{match("a", 0.9, []float32{1})}, nil
			},
		}

		outcome, err := NewAggregator(searcher, nil).Query(ctx, []float32{1}, "openai")
		require.NoError(t, err)

		assert.Equal(t, "openai", outcome.Metadata.EmbeddingSource)
		assert.Equal(t, 1, outcome.Metadata.ResultsFound)
		assert.GreaterOrEqual(t, outcome.Metadata.ProcessingTimeMs, 0.0)

		parsed, parseErr := time.Parse(time.RFC3339Nano, outcome.Metadata.Timestamp)
		require.NoError(t, parseErr)
		assert.Equal(t, time.UTC, parsed.Location())
	})
}

func TestService(t *testing.T) {
	ctx := context.Background()

	searcher := &mockSearcher{
		topKFunc: func(context.Context, []float32, int) ([]models.Match, error) {
			return []models.Match{match("fp-001", 0.95, []float32{1, 0})}, nil
		},
	}
	aggregator := NewAggregator(searcher, nil)

	t.Run("QueryImage tags the outcome with the embedder's source", func(t *testing.T) {
		embedder := &mockEmbedder{
			embedFunc: func(context.Context, []byte) (embeddings.Result, error) {
				return embeddings.Result{Embedding: []float32{1, 0}, Source: "local"}, nil
			},
		}

		outcome, err := NewService(embedder, aggregator, nil).QueryImage(ctx, []byte("img"))
		require.NoError(t, err)
		assert.Equal(t, "local", outcome.Metadata.EmbeddingSource)
		assert.Len(t, outcome.Cases, 1)
	})

	t.Run("QueryImage propagates embedding failures", func(t *testing.T) {
		embedErr := errors.New("no client could embed")
		embedder := &mockEmbedder{
			embedFunc: func(context.Context, []byte) (embeddings.Result, error) {
				return embeddings.Result{}, embedErr
			},
		}

		_, err := NewService(embedder, aggregator, nil).QueryImage(ctx, []byte("img"))
		assert.ErrorIs(t, err, embedErr)
	})

	t.Run("QueryEmbedding defaults the source to pre-computed", func(t *testing.T) {
		outcome, err := NewService(nil, aggregator, nil).QueryEmbedding(ctx, []float32{1, 0}, "")
		require.NoError(t, err)
		assert.Equal(t, "pre-computed", outcome.Metadata.EmbeddingSource)
	})
}
