package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soleprint/hub/internal/models"
	"github.com/soleprint/hub/internal/vectorstore"
)

func newTestStore(t *testing.T) *vectorstore.MemoryStore {
	t.Helper()

	return vectorstore.NewMemoryStore(2, slog.New(slog.DiscardHandler))
}

func TestFootprintsHandler_Create(t *testing.T) {
	t.Run("valid record returns 201", func(t *testing.T) {
		store := newTestStore(t)
		handler := NewFootprintsHandler(store, nil, 0)

		body := []byte(`{"id":"fp-001","metadata":{"brand":"alpha"},"embedding":[1,0]}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/footprints", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)

		count, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("dimension mismatch returns 422", func(t *testing.T) {
		handler := NewFootprintsHandler(newTestStore(t), nil, 0)

		body := []byte(`{"id":"fp-001","metadata":{},"embedding":[1,0,0]}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/footprints", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("missing id returns 422", func(t *testing.T) {
		handler := NewFootprintsHandler(newTestStore(t), nil, 0)

		body := []byte(`{"metadata":{},"embedding":[1,0]}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/footprints", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		handler := NewFootprintsHandler(newTestStore(t), nil, 0)

		req := httptest.NewRequest(http.MethodPost, "http://test/v1/footprints", bytes.NewReader([]byte(`{`)))
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFootprintsHandler_BatchInsert(t *testing.T) {
	t.Run("partial failure reports counts", func(t *testing.T) {
		store := newTestStore(t)
		handler := NewFootprintsHandler(store, nil, 0)

		body := []byte(`{"records":[
			{"id":"fp-001","metadata":{},"embedding":[1,0]},
			{"id":"fp-002","metadata":{},"embedding":[1,0,0]},
			{"id":"fp-003","metadata":{},"embedding":[0,1]}
		]}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/footprints/batch", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		rec := httptest.NewRecorder()
		handler.BatchInsert(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var result vectorstore.BatchResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 2, result.Inserted)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "fp-002")
	})

	t.Run("empty records returns 422", func(t *testing.T) {
		handler := NewFootprintsHandler(newTestStore(t), nil, 0)

		body := []byte(`{"records":[]}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/footprints/batch", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.BatchInsert(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("omitted batch_size falls back to the configured default", func(t *testing.T) {
		spy := &batchSizeSpy{}
		handler := NewFootprintsHandler(spy, nil, 25)

		body := []byte(`{"records":[{"id":"fp-001","metadata":{},"embedding":[1,0]}]}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/footprints/batch", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.BatchInsert(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 25, spy.gotBatchSize)
	})

	t.Run("explicit batch_size overrides the default", func(t *testing.T) {
		spy := &batchSizeSpy{}
		handler := NewFootprintsHandler(spy, nil, 25)

		body := []byte(`{"batch_size":7,"records":[{"id":"fp-001","metadata":{},"embedding":[1,0]}]}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/footprints/batch", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.BatchInsert(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 7, spy.gotBatchSize)
	})
}

// batchSizeSpy records the batch size the handler passes to InsertBatch.
type batchSizeSpy struct {
	vectorstore.Store
	gotBatchSize int
}

func (s *batchSizeSpy) InsertBatch(_ context.Context, recs []models.Footprint, batchSize int) (vectorstore.BatchResult, error) {
	s.gotBatchSize = batchSize

	return vectorstore.BatchResult{Inserted: len(recs)}, nil
}

func TestFootprintsHandler_CountDeleteClear(t *testing.T) {
	seed := func(t *testing.T, store *vectorstore.MemoryStore) {
		t.Helper()

		body := []byte(`{"records":[
			{"id":"fp-001","metadata":{},"embedding":[1,0]},
			{"id":"fp-002","metadata":{},"embedding":[0,1]}
		]}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/footprints/batch", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		NewFootprintsHandler(store, nil, 0).BatchInsert(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	t.Run("count returns stored total", func(t *testing.T) {
		store := newTestStore(t)
		seed(t, store)
		handler := NewFootprintsHandler(store, nil, 0)

		req := httptest.NewRequest(http.MethodGet, "http://test/v1/footprints/count", nil)
		rec := httptest.NewRecorder()
		handler.Count(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var got map[string]int64
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, int64(2), got["count"])
	})

	t.Run("delete removes one footprint", func(t *testing.T) {
		store := newTestStore(t)
		seed(t, store)
		handler := NewFootprintsHandler(store, nil, 0)

		req := httptest.NewRequest(http.MethodDelete, "http://test/v1/footprints/fp-001", nil)
		req.SetPathValue("id", "fp-001")
		rec := httptest.NewRecorder()
		handler.Delete(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)

		count, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("delete unknown id returns 404", func(t *testing.T) {
		handler := NewFootprintsHandler(newTestStore(t), nil, 0)

		req := httptest.NewRequest(http.MethodDelete, "http://test/v1/footprints/fp-404", nil)
		req.SetPathValue("id", "fp-404")
		rec := httptest.NewRecorder()
		handler.Delete(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("clear removes everything", func(t *testing.T) {
		store := newTestStore(t)
		seed(t, store)
		handler := NewFootprintsHandler(store, nil, 0)

		req := httptest.NewRequest(http.MethodDelete, "http://test/v1/footprints", nil)
		rec := httptest.NewRecorder()
		handler.Clear(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)

		count, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
