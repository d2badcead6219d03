package embeddings

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/soleprint/hub/pkg/vector"
)

// MockClient implements the Client interface for testing purposes.
// It generates deterministic embeddings from the image byte hash.
type MockClient struct {
	dim int
}

// Ensure MockClient implements Client interface
var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock embedding client with the given dimension.
func NewMockClient(dim int) *MockClient {
	return &MockClient{dim: dim}
}

// Embed generates a deterministic unit-length embedding from the image hash.
func (c *MockClient) Embed(_ context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image cannot be empty")
	}

	hash := sha256.Sum256(image)
	embedding := make([]float32, c.dim)

	// Hash bytes cycled into [-1, 1].
	for i := 0; i < c.dim; i++ {
		embedding[i] = (float32(hash[i%len(hash)]) / 127.5) - 1.0
	}

	vector.NormalizeL2(embedding)

	return embedding, nil
}
