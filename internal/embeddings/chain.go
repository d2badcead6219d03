package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soleprint/hub/internal/apperrors"
)

// Result is a tagged embedding outcome: the vector plus the name of the client
// that produced it. The source label travels into query metadata so callers
// can tell a remote embedding from a local fallback.
type Result struct {
	Embedding []float32
	Source    string
}

type namedClient struct {
	name   string
	client Client
}

// FallbackChain tries each registered client in order and returns the first
// success as a tagged Result. Failures are logged and collected; only when
// every client fails does Embed return an error (the joined failures).
type FallbackChain struct {
	clients []namedClient
	logger  *slog.Logger
}

// NewFallbackChain creates an empty chain. A nil logger falls back to
// slog.Default().
func NewFallbackChain(logger *slog.Logger) *FallbackChain {
	if logger == nil {
		logger = slog.Default()
	}

	return &FallbackChain{logger: logger}
}

// Add appends a named client to the chain and returns the chain for chaining.
func (c *FallbackChain) Add(name string, client Client) *FallbackChain {
	c.clients = append(c.clients, namedClient{name: name, client: client})

	return c
}

// Embed runs the chain against the image. Returns EmptyInputError when no
// clients are registered.
func (c *FallbackChain) Embed(ctx context.Context, image []byte) (Result, error) {
	if len(c.clients) == 0 {
		return Result{}, apperrors.NewEmptyInputError("fallback chain has no embedding clients")
	}

	var errs []error

	for _, nc := range c.clients {
		embedding, err := nc.client.Embed(ctx, image)
		if err != nil {
			c.logger.Warn("embedding client failed, trying next", "source", nc.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", nc.name, err))

			continue
		}

		return Result{Embedding: embedding, Source: nc.name}, nil
	}

	return Result{}, fmt.Errorf("all embedding clients failed: %w", errors.Join(errs...))
}
