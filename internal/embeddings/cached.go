package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/soleprint/hub/pkg/cache"
)

// CachingClient wraps a Client with an LRU keyed by the image content hash, so
// repeated queries with the same footprint image embed only once.
type CachingClient struct {
	inner Client
	cache *cache.LoaderCache[[]float32]
}

// Ensure CachingClient implements Client interface
var _ Client = (*CachingClient)(nil)

// NewCachingClient wraps inner with a cache of at most maxEntries embeddings.
func NewCachingClient(inner Client, maxEntries int) (*CachingClient, error) {
	loaderCache, err := cache.NewLoaderCache[[]float32](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &CachingClient{inner: inner, cache: loaderCache}, nil
}

// Embed returns the cached embedding for the image, generating it on miss.
func (c *CachingClient) Embed(ctx context.Context, image []byte) ([]float32, error) {
	sum := sha256.Sum256(image)
	key := hex.EncodeToString(sum[:])

	return c.cache.Get(ctx, key, func(ctx context.Context) ([]float32, error) {
		return c.inner.Embed(ctx, image)
	})
}
