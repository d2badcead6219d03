package models

import "time"

// Footprint is one stored footprint record: a caller-assigned id, an open
// metadata mapping (age, weight, height, gender, brand, ...) and a fixed-dimension
// image embedding. Metadata is opaque to the retrieval core beyond pass-through.
type Footprint struct {
	ID        string         `json:"id"`
	ImagePath string         `json:"image_path,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SearchResult is one similarity search hit. Transient: produced by a search
// call and never persisted.
type SearchResult struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"similarity_score"`
}

// Match pairs a search result with the stored embedding it was scored against,
// so callers can aggregate the embeddings (e.g. averaging for re-ranking).
type Match struct {
	Result    SearchResult
	Embedding []float32
}

// Case is a ranked search result relabeled for presentation: rank 1 is
// "CASE A", rank 2 "CASE B", rank 3 "CASE C". At most three cases per query.
type Case struct {
	Label    string         `json:"case_label"`
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"similarity_score"`
}

// QueryMetadata carries timing and provenance for one retrieval query.
type QueryMetadata struct {
	Timestamp        string  `json:"timestamp"`
	EmbeddingSource  string  `json:"embedding_source"`
	ResultsFound     int     `json:"results_found"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// QueryOutcome is the aggregate retrieval response: 0-3 ordered cases plus
// query metadata. TargetEmbedding is the element-wise mean of the matched
// stored embeddings, kept as a side output for downstream re-ranking or
// caching; it never alters the returned cases.
type QueryOutcome struct {
	Cases           []Case        `json:"cases"`
	TargetEmbedding []float32     `json:"-"`
	Metadata        QueryMetadata `json:"query_metadata"`
}
