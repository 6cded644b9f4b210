// Package httpx provides the JSON API for submitting simulations and reading their results.
package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/target/simqueue/internal/domain/model"
	"github.com/target/simqueue/internal/service"
)

const (
	// HeaderIdempotencyKey deduplicates batch submissions per owner.
	HeaderIdempotencyKey = "Idempotency-Key"

	defaultListLimit = 50
	maxListLimit     = 200

	// maxBatchBodyBytes bounds a batch create body; the parameter template is small.
	maxBatchBodyBytes = 64 << 10
)

// SimulationHandlers provides HTTP handlers for simulation operations.
type SimulationHandlers struct {
	Svc            *service.SimulationService
	Imports        *service.ImportService
	MaxImportBytes int64
	Logger         *slog.Logger
}

type batchResponse struct {
	BatchID     string                    `json:"batchId"`
	Simulations []model.CreatedSimulation `json:"simulations"`
	Message     string                    `json:"message"`
}

// CreateBatch handles POST /api/simulations/batch.
func (h *SimulationHandlers) CreateBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchBodyBytes)
	var req model.CreateBatchRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	res, err := h.Svc.CreateBatch(r.Context(), OwnerFromContext(r.Context()), &req, key)
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, batchResponse{
		BatchID:     res.BatchID,
		Simulations: res.Simulations,
		Message:     fmt.Sprintf("Successfully created and queued %d simulation(s)", len(res.Simulations)),
	})
}

type importResponse struct {
	service.ImportResult
	Message string `json:"message"`
}

// Import handles POST /api/simulations/import?count=N&path=<jmespath>.
// The body is the raw JSON document.
func (h *SimulationHandlers) Import(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxImportBytes
	if limit <= 0 {
		limit = service.MaxImportBytes
	}
	doc, err := readLimited(w, r, limit)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, ErrorParams{
				Code:    http.StatusRequestEntityTooLarge,
				ErrCode: "too_large",
				Err:     fmt.Errorf("import document exceeds %d bytes", limit),
			})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_body", Err: err})
		return
	}

	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("count must be an integer"),
			Field:   "count",
		})
		return
	}

	res, err := h.Imports.Import(service.ImportRequest{
		Document: doc,
		Path:     r.URL.Query().Get("path"),
		Count:    count,
	})
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, importResponse{
		ImportResult: *res,
		Message:      fmt.Sprintf("Successfully validated simulation data for %d simulation(s)", res.Count),
	})
}

// List handles GET /api/simulations.
func (h *SimulationHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultListLimit, maxListLimit)
	sims, err := h.Svc.List(r.Context(), model.SimulationListOptions{
		UserID: OwnerFromContext(r.Context()),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}
	if sims == nil {
		sims = []*model.Simulation{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"simulations": sims, "limit": limit, "offset": offset})
}

// Get handles GET /api/simulations/{id}.
func (h *SimulationHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}
	sim, err := h.Svc.Get(r.Context(), id, OwnerFromContext(r.Context()))
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, sim)
}

type resultResponse struct {
	ID     int64                   `json:"id"`
	Result *model.SimulationResult `json:"result"`
}

// Results handles GET /api/simulations/{id}/results.
func (h *SimulationHandlers) Results(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.GetResult(r.Context(), id, OwnerFromContext(r.Context()))
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, resultResponse{ID: id, Result: res})
}

// Delete handles DELETE /api/simulations/{id}.
func (h *SimulationHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), id, OwnerFromContext(r.Context())); err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/simulations/stats.
func (h *SimulationHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context(), OwnerFromContext(r.Context()))
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (h *SimulationHandlers) requireID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := pathID(r)
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_path",
			Err:     errors.New("simulation id must be a positive integer"),
		})
	}
	return id, ok
}
