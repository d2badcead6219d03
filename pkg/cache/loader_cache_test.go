package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderCache_Get(t *testing.T) {
	t.Run("loads on miss and caches", func(t *testing.T) {
		c, err := NewLoaderCache[int](8)
		require.NoError(t, err)

		var loads atomic.Int64
		load := func(context.Context) (int, error) {
			loads.Add(1)

			return 42, nil
		}

		for i := 0; i < 3; i++ {
			v, err := c.Get(context.Background(), "k", load)
			require.NoError(t, err)
			assert.Equal(t, 42, v)
		}

		assert.Equal(t, int64(1), loads.Load())
		assert.Equal(t, 1, c.Len())
	})

	t.Run("failed loads are not cached", func(t *testing.T) {
		c, err := NewLoaderCache[int](8)
		require.NoError(t, err)

		var loads atomic.Int64
		boom := errors.New("boom")
		load := func(context.Context) (int, error) {
			loads.Add(1)

			return 0, boom
		}

		_, err = c.Get(context.Background(), "k", load)
		assert.ErrorIs(t, err, boom)
		_, err = c.Get(context.Background(), "k", load)
		assert.ErrorIs(t, err, boom)

		assert.Equal(t, int64(2), loads.Load())
		assert.Zero(t, c.Len())
	})

	t.Run("concurrent misses for one key coalesce", func(t *testing.T) {
		c, err := NewLoaderCache[int](8)
		require.NoError(t, err)

		var loads atomic.Int64

		release := make(chan struct{})
		load := func(context.Context) (int, error) {
			loads.Add(1)
			<-release

			return 7, nil
		}

		const goroutines = 20

		var wg sync.WaitGroup

		start := make(chan struct{})

		for i := 0; i < goroutines; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()
				<-start

				v, err := c.Get(context.Background(), "shared", load)
				assert.NoError(t, err)
				assert.Equal(t, 7, v)
			}()
		}

		close(start)
		close(release)
		wg.Wait()

		// Every goroutine that missed shares one in-flight load; a late
		// arrival may hit the cache instead, so loads is small, not exactly 1.
		assert.LessOrEqual(t, loads.Load(), int64(2))
	})
}

func TestLoaderCache_Invalidate(t *testing.T) {
	c, err := NewLoaderCache[string](8)
	require.NoError(t, err)

	var loads atomic.Int64
	load := func(context.Context) (string, error) {
		loads.Add(1)

		return "v", nil
	}

	_, err = c.Get(context.Background(), "k", load)
	require.NoError(t, err)

	c.Invalidate("k")

	_, err = c.Get(context.Background(), "k", load)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loads.Load())
}
