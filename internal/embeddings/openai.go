package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// OpenAIClient implements the Client interface using OpenAI's embedding API.
// It embeds a deterministic content descriptor derived from the image bytes;
// a true image-embedding model can be swapped in behind the same interface.
// HTTP retries live in the transport (retryablehttp), not in the retrieval core.
type OpenAIClient struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	dim     int
	limiter *rate.Limiter
}

// Ensure OpenAIClient implements Client interface
var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates an OpenAI embedding client producing vectors of the
// given dimension (the API truncates text-embedding-3 models to any requested
// size). requestsPerSecond caps outbound calls; <= 0 disables the limiter.
// Panics if apiKey is empty.
func NewOpenAIClient(apiKey string, dim int, requestsPerSecond float64) *OpenAIClient {
	if apiKey == "" {
		panic("embeddings: OpenAI API key cannot be empty")
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = retryClient.StandardClient()

	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   openai.SmallEmbedding3,
		dim:     dim,
		limiter: limiter,
	}
}

// Embed generates an embedding vector for the given image bytes.
func (c *OpenAIClient) Embed(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image cannot be empty")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{imageDescriptor(image)},
		Model:      c.model,
		Dimensions: c.dim,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned from API")
	}

	embedding := resp.Data[0].Embedding
	if len(embedding) != c.dim {
		return nil, fmt.Errorf("unexpected embedding dimension: got %d, expected %d", len(embedding), c.dim)
	}

	return embedding, nil
}

// imageDescriptor returns the deterministic text stand-in embedded for an image.
func imageDescriptor(image []byte) string {
	sum := sha256.Sum256(image)

	return "footprint image hash " + hex.EncodeToString(sum[:])[:32]
}
