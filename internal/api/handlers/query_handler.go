package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/soleprint/hub/internal/api/response"
	"github.com/soleprint/hub/internal/apperrors"
	"github.com/soleprint/hub/internal/models"
	"github.com/soleprint/hub/internal/observability"
)

// QueryService runs the retrieval flow for an uploaded image or a
// pre-computed embedding.
type QueryService interface {
	QueryImage(ctx context.Context, image []byte) (models.QueryOutcome, error)
	QueryEmbedding(ctx context.Context, embedding []float32, source string) (models.QueryOutcome, error)
}

// QueryHandler handles HTTP requests for footprint retrieval queries.
type QueryHandler struct {
	service QueryService
	metrics observability.HubMetrics
}

// NewQueryHandler creates a new query handler. metrics may be nil.
func NewQueryHandler(service QueryService, metrics observability.HubMetrics) *QueryHandler {
	return &QueryHandler{service: service, metrics: metrics}
}

// EmbeddingQueryRequest is the body for POST /v1/query/embedding.
// Embedding components are pointers so JSON nulls survive decoding; nulls are
// treated as 0.0, never rejected.
type EmbeddingQueryRequest struct {
	Embedding []*float64 `json:"embedding"`
	Source    string     `json:"source,omitempty"`
}

// QueryByImage handles POST /v1/query: multipart upload with an "image" part.
func (h *QueryHandler) QueryByImage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	file, _, err := r.FormFile("image")
	if err != nil {
		if isBodyTooLarge(err) {
			response.RespondRequestEntityTooLarge(w, "uploaded image exceeds maximum allowed size")
			return
		}
		response.RespondBadRequest(w, `multipart form with an "image" part is required`)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			response.RespondRequestEntityTooLarge(w, "uploaded image exceeds maximum allowed size")
			return
		}
		response.RespondBadRequest(w, "failed to read image upload")
		return
	}

	if len(image) == 0 {
		response.RespondUnprocessableEntity(w, "image upload is empty")
		return
	}

	outcome, err := h.service.QueryImage(r.Context(), image)
	if err != nil {
		h.respondQueryError(w, r, "", start, err)
		return
	}

	h.recordQuery(r.Context(), outcome, start)
	response.RespondJSON(w, http.StatusOK, outcome)
}

// QueryByEmbedding handles POST /v1/query/embedding: a pre-computed vector.
func (h *QueryHandler) QueryByEmbedding(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req EmbeddingQueryRequest

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

	if len(req.Embedding) == 0 {
		response.RespondUnprocessableEntity(w, "embedding is required and must be non-empty")
		return
	}

	// JSON nulls become 0.0 here; non-finite values are cleaned downstream.
	embedding := make([]float32, len(req.Embedding))
	for i, v := range req.Embedding {
		if v != nil {
			embedding[i] = float32(*v)
		}
	}

	outcome, err := h.service.QueryEmbedding(r.Context(), embedding, req.Source)
	if err != nil {
		h.respondQueryError(w, r, req.Source, start, err)
		return
	}

	h.recordQuery(r.Context(), outcome, start)
	response.RespondJSON(w, http.StatusOK, outcome)
}

func (h *QueryHandler) respondQueryError(w http.ResponseWriter, r *http.Request, source string, start time.Time, err error) {
	if h.metrics != nil {
		h.metrics.RecordQuery(r.Context(), source, "error", time.Since(start))
	}

	var validationErr *apperrors.ValidationError
	if errors.As(err, &validationErr) {
		response.RespondUnprocessableEntity(w, validationErr.Error())
		return
	}

	response.RespondInternalServerError(w, "query failed")
}

func (h *QueryHandler) recordQuery(ctx context.Context, outcome models.QueryOutcome, start time.Time) {
	if h.metrics == nil {
		return
	}

	status := "success"
	if outcome.Metadata.ResultsFound == 0 {
		status = "no_results"
	}
	h.metrics.RecordQuery(ctx, outcome.Metadata.EmbeddingSource, status, time.Since(start))
}

// isBodyTooLarge reports whether err came from http.MaxBytesReader.
func isBodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}
