// Package retrieval turns a query embedding into a ranked, labeled case
// response: the top-3 nearest stored footprints under cosine similarity,
// relabeled CASE A/B/C with rounded scores and timing metadata.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/soleprint/hub/internal/models"
	"github.com/soleprint/hub/pkg/vector"
)

// CasesPerQuery is the fixed number of cases a query can return.
const CasesPerQuery = 3

// caseLabels assigns labels strictly by rank: 1st closest is CASE A.
var caseLabels = [CasesPerQuery]string{"CASE A", "CASE B", "CASE C"}

// SimilaritySearcher answers exact top-k similarity queries. Satisfied by both
// vectorstore implementations; a future approximate index can slot in here
// without touching the aggregation contract.
type SimilaritySearcher interface {
	TopK(ctx context.Context, query []float32, k int) ([]models.Match, error)
}

// Aggregator consumes a query embedding and produces a QueryOutcome.
// It holds no persistent state, only a reference to the searcher.
type Aggregator struct {
	searcher SimilaritySearcher
	logger   *slog.Logger
}

// NewAggregator creates an aggregator over the given searcher.
// A nil logger falls back to slog.Default().
func NewAggregator(searcher SimilaritySearcher, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{searcher: searcher, logger: logger}
}

// Query runs the retrieval flow for one query embedding:
//
//  1. Clean the embedding (NaN/Inf components become 0, never rejected).
//  2. Fetch the top-3 matches from the searcher.
//  3. Average the matched stored embeddings into TargetEmbedding, a side
//     output for downstream re-ranking or caching; it does not alter the cases.
//  4. Label the matches CASE A/B/C by rank, scores rounded to 4 decimals.
//
// No matches is not an error: the outcome carries zero cases. Storage failures
// propagate wrapped, never masked or retried. source labels where the query
// embedding came from (e.g. "local", "openai", "pre-computed").
func (a *Aggregator) Query(ctx context.Context, queryEmbedding []float32, source string) (models.QueryOutcome, error) {
	start := time.Now()

	cleaned := vector.Clean(queryEmbedding)

	matches, err := a.searcher.TopK(ctx, cleaned, CasesPerQuery)
	if err != nil {
		a.logger.Error("retrieval query: top-k search failed", "error", err, "source", source)

		return models.QueryOutcome{}, fmt.Errorf("top-k search: %w", err)
	}

	outcome := models.QueryOutcome{Cases: make([]models.Case, 0, CasesPerQuery)}

	if len(matches) == 0 {
		a.logger.Warn("no matching footprints found", "source", source)
		outcome.Metadata = queryMetadata(start, source, 0)

		return outcome, nil
	}

	storedEmbeddings := make([][]float32, 0, len(matches))

	for _, m := range matches {
		if len(m.Embedding) > 0 {
			storedEmbeddings = append(storedEmbeddings, m.Embedding)
		}
	}

	if target, avgErr := vector.Average(storedEmbeddings); avgErr == nil {
		outcome.TargetEmbedding = target
		a.logger.Debug("computed target embedding", "vectors", len(storedEmbeddings))
	}

	// Never more than 3 cases, even if the searcher over-returns.
	if len(matches) > CasesPerQuery {
		matches = matches[:CasesPerQuery]
	}

	for i, m := range matches {
		outcome.Cases = append(outcome.Cases, models.Case{
			Label:    caseLabels[i],
			ID:       m.Result.ID,
			Metadata: m.Result.Metadata,
			Score:    vector.Round4(m.Result.Score),
		})
	}

	outcome.Metadata = queryMetadata(start, source, len(outcome.Cases))

	return outcome, nil
}

// queryMetadata stamps the outcome with the query start time (ISO-8601), the
// embedding source, the case count, and the elapsed milliseconds rounded to 2
// decimals.
func queryMetadata(start time.Time, source string, found int) models.QueryMetadata {
	elapsedMs := float64(time.Since(start).Nanoseconds()) / 1e6

	return models.QueryMetadata{
		Timestamp:        start.UTC().Format(time.RFC3339Nano),
		EmbeddingSource:  source,
		ResultsFound:     found,
		ProcessingTimeMs: math.Round(elapsedMs*100) / 100,
	}
}
