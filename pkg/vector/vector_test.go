package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soleprint/hub/internal/apperrors"
)

func TestCosine(t *testing.T) {
	t.Run("identical vectors score 1", func(t *testing.T) {
		sim, ok := Cosine([]float32{1, 0}, []float32{1, 0})
		require.True(t, ok)
		assert.InDelta(t, 1.0, sim, 1e-9)
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		sim, ok := Cosine([]float32{1, 0}, []float32{0, 1})
		require.True(t, ok)
		assert.InDelta(t, 0.0, sim, 1e-9)
	})

	t.Run("diagonal against axis", func(t *testing.T) {
		sim, ok := Cosine([]float32{1, 0}, []float32{0.7, 0.7})
		require.True(t, ok)
		assert.InDelta(t, 1/math.Sqrt2, sim, 1e-6)
	})

	t.Run("opposite vectors score -1", func(t *testing.T) {
		sim, ok := Cosine([]float32{1, 2}, []float32{-1, -2})
		require.True(t, ok)
		assert.InDelta(t, -1.0, sim, 1e-9)
	})

	t.Run("zero-norm vector is undefined", func(t *testing.T) {
		_, ok := Cosine([]float32{0, 0}, []float32{1, 0})
		assert.False(t, ok)

		_, ok = Cosine([]float32{1, 0}, []float32{0, 0})
		assert.False(t, ok)
	})
}

func TestAverage(t *testing.T) {
	t.Run("element-wise mean", func(t *testing.T) {
		avg, err := Average([][]float32{{1, 2}, {3, 4}})
		require.NoError(t, err)
		assert.Equal(t, []float32{2, 3}, avg)
	})

	t.Run("single vector is its own average", func(t *testing.T) {
		avg, err := Average([][]float32{{0.5, -1.5, 3}})
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, -1.5, 3}, avg)
	})

	t.Run("output dimension matches inputs", func(t *testing.T) {
		avg, err := Average([][]float32{{1, 1, 1, 1}, {2, 2, 2, 2}, {3, 3, 3, 3}})
		require.NoError(t, err)
		require.Len(t, avg, 4)

		for i := range avg {
			assert.InDelta(t, 2.0, float64(avg[i]), 1e-6)
		}
	})

	t.Run("empty input returns EmptyInputError", func(t *testing.T) {
		_, err := Average(nil)
		assert.ErrorIs(t, err, apperrors.ErrEmptyInput)

		_, err = Average([][]float32{})
		assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
	})
}

func TestNormalizeL2(t *testing.T) {
	t.Run("normalizes to unit length in place", func(t *testing.T) {
		vec := []float32{3, 4}
		NormalizeL2(vec)
		assert.InDelta(t, 0.6, float64(vec[0]), 1e-5)
		assert.InDelta(t, 0.8, float64(vec[1]), 1e-5)
	})

	t.Run("zero vector unchanged", func(t *testing.T) {
		vec := []float32{0, 0, 0}
		NormalizeL2(vec)
		assert.Equal(t, []float32{0, 0, 0}, vec)
	})
}

func TestClean(t *testing.T) {
	t.Run("replaces NaN and Inf with zero", func(t *testing.T) {
		nan := float32(math.NaN())
		inf := float32(math.Inf(1))
		out := Clean([]float32{1, nan, -2, inf, float32(math.Inf(-1))})
		assert.Equal(t, []float32{1, 0, -2, 0, 0}, out)
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		in := []float32{float32(math.NaN()), 1}
		_ = Clean(in)
		assert.True(t, math.IsNaN(float64(in[0])))
	})
}

func TestRound4(t *testing.T) {
	assert.InDelta(t, 0.7071, Round4(1/math.Sqrt2), 1e-9)
	assert.InDelta(t, 1.0, Round4(0.99999), 1e-9)
	assert.InDelta(t, 0.0, Round4(0.00001), 1e-9)
}
