package embeddings

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/soleprint/hub/pkg/vector"
)

// LocalClient generates embeddings from raw pixel intensities without any
// remote dependency: the image is converted to grayscale, resized to a small
// fixed square, and the normalized pixel values become the vector. Crude next
// to a learned model, but deterministic, dimension-exact, and always available
// as the last link of a fallback chain.
type LocalClient struct {
	dim  int
	side int
}

// Ensure LocalClient implements Client interface
var _ Client = (*LocalClient)(nil)

// NewLocalClient creates a local pixel-based embedding client producing
// vectors of the given dimension.
func NewLocalClient(dim int) *LocalClient {
	// Smallest square holding dim pixels; extra pixels are truncated.
	side := int(math.Ceil(math.Sqrt(float64(dim))))

	return &LocalClient{dim: dim, side: side}
}

// Embed decodes the image (TIFF, PNG, or JPEG), downsamples it to a grayscale
// square, and flattens the pixels into a [0,1]-scaled vector of the client's
// dimension.
func (c *LocalClient) Embed(_ context.Context, imageData []byte) ([]float32, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("image cannot be empty")
	}

	src, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	gray := image.NewGray(image.Rect(0, 0, c.side, c.side))
	draw.CatmullRom.Scale(gray, gray.Bounds(), src, src.Bounds(), draw.Src, nil)

	embedding := make([]float32, c.dim)
	// Row-major flatten; pixels past dim are dropped, missing ones stay 0.
	for i := 0; i < c.dim && i < len(gray.Pix); i++ {
		embedding[i] = float32(gray.Pix[i]) / 255.0
	}

	return vector.Clean(embedding), nil
}
