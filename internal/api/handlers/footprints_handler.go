package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/soleprint/hub/internal/api/response"
	"github.com/soleprint/hub/internal/apperrors"
	"github.com/soleprint/hub/internal/models"
	"github.com/soleprint/hub/internal/observability"
	"github.com/soleprint/hub/internal/vectorstore"
)

// FootprintsHandler handles HTTP requests for footprint record management.
type FootprintsHandler struct {
	store            vectorstore.Store
	metrics          observability.HubMetrics
	defaultBatchSize int
}

// NewFootprintsHandler creates a new footprints handler. metrics may be nil.
// defaultBatchSize applies to batch inserts whose request omits batch_size;
// non-positive values fall back to the store default.
func NewFootprintsHandler(store vectorstore.Store, metrics observability.HubMetrics, defaultBatchSize int) *FootprintsHandler {
	if defaultBatchSize <= 0 {
		defaultBatchSize = vectorstore.DefaultBatchSize
	}

	return &FootprintsHandler{store: store, metrics: metrics, defaultBatchSize: defaultBatchSize}
}

// CreateFootprintRequest is the body for POST /v1/footprints.
type CreateFootprintRequest struct {
	ID        string         `json:"id"`
	ImagePath string         `json:"image_path,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding"`
}

// BatchInsertRequest is the body for POST /v1/footprints/batch.
type BatchInsertRequest struct {
	Records   []CreateFootprintRequest `json:"records"`
	BatchSize int                      `json:"batch_size,omitempty"`
}

// Create handles POST /v1/footprints. Re-inserting an existing id replaces
// its metadata and embedding.
func (h *FootprintsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateFootprintRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		if isBodyTooLarge(err) {
			response.RespondRequestEntityTooLarge(w, "request body exceeds maximum allowed size")
			return
		}
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	err := h.store.Insert(r.Context(), models.Footprint{
		ID:        req.ID,
		ImagePath: req.ImagePath,
		Metadata:  req.Metadata,
		Embedding: req.Embedding,
	})
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordFootprintsInserted(r.Context(), 1)
	}

	response.RespondJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// BatchInsert handles POST /v1/footprints/batch. Individual record failures
// never abort the batch; the response reports inserted/failed counts and the
// first few error messages.
func (h *FootprintsHandler) BatchInsert(w http.ResponseWriter, r *http.Request) {
	var req BatchInsertRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		if isBodyTooLarge(err) {
			response.RespondRequestEntityTooLarge(w, "request body exceeds maximum allowed size")
			return
		}
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if len(req.Records) == 0 {
		response.RespondUnprocessableEntity(w, "records is required and must be non-empty")
		return
	}

	recs := make([]models.Footprint, len(req.Records))
	for i, rec := range req.Records {
		recs[i] = models.Footprint{
			ID:        rec.ID,
			ImagePath: rec.ImagePath,
			Metadata:  rec.Metadata,
			Embedding: rec.Embedding,
		}
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = h.defaultBatchSize
	}

	result, err := h.store.InsertBatch(r.Context(), recs, batchSize)
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordFootprintsInserted(r.Context(), result.Inserted)
		h.metrics.RecordInsertFailures(r.Context(), result.Failed)
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Count handles GET /v1/footprints/count.
func (h *FootprintsHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context())
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// Delete handles DELETE /v1/footprints/{id}.
func (h *FootprintsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		response.RespondBadRequest(w, "footprint id is required")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /v1/footprints: removes every stored footprint.
func (h *FootprintsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *FootprintsHandler) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *apperrors.ValidationError
	if errors.As(err, &validationErr) {
		if h.metrics != nil {
			h.metrics.RecordInsertFailures(r.Context(), 1)
		}
		response.RespondUnprocessableEntity(w, validationErr.Error())
		return
	}

	var notFoundErr *apperrors.NotFoundError
	if errors.As(err, &notFoundErr) {
		response.RespondNotFound(w, notFoundErr.Error())
		return
	}

	response.RespondInternalServerError(w, "storage operation failed")
}
