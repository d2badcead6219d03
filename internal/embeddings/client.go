// Package embeddings generates fixed-dimension embedding vectors for footprint
// images. Clients are interchangeable behind one interface; the fallback chain
// composes them and tags each result with the client that produced it.
package embeddings

import "context"

// Client generates an embedding vector for a footprint image.
// Every client configured for a store must return that store's dimension;
// a mismatch is a contract violation surfaced at insert time.
type Client interface {
	Embed(ctx context.Context, image []byte) ([]float32, error)
}

// Embedding source labels, reported in query metadata.
const (
	SourceLocal       = "local"
	SourceOpenAI      = "openai"
	SourcePrecomputed = "pre-computed"
)
