package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/data"
	"github.com/target/simqueue/internal/domain/model"
	"go.uber.org/mock/gomock"
)

func batchBody(count int) map[string]any {
	return map[string]any{
		"simulationData": map[string]any{"title": "Trial", "tumorCount": 10},
		"count":          count,
	}
}

func TestAPI_RequiresIdentity(t *testing.T) {
	h := newAPIHarness(t)

	paths := []struct{ method, path string }{
		{http.MethodPost, "/api/simulations/batch"},
		{http.MethodPost, "/api/simulations/import?count=1"},
		{http.MethodGet, "/api/simulations"},
		{http.MethodGet, "/api/simulations/1"},
		{http.MethodGet, "/api/simulations/1/results"},
		{http.MethodDelete, "/api/simulations/1"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			res := h.do(t, apiRequest{method: p.method, path: p.path, anon: true})
			assert.Equal(t, http.StatusUnauthorized, res.status)
			assert.Equal(t, "unauthorized", res.errorCode(t))
			assert.NotEmpty(t, res.header.Get("WWW-Authenticate"))
		})
	}

	res := h.do(t, apiRequest{
		method:  http.MethodGet,
		path:    "/api/simulations",
		anon:    true,
		headers: map[string]string{"Authorization": "Bearer wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestAPI_CreateBatch(t *testing.T) {
	h := newAPIHarness(t)
	h.repo.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p core.CreateBatchParams) ([]model.CreatedSimulation, error) {
			assert.Equal(t, "user-1", p.UserID)
			out := make([]model.CreatedSimulation, len(p.Items))
			for i, it := range p.Items {
				out[i] = model.CreatedSimulation{ID: int64(i + 1), Title: it.Title}
			}
			return out, nil
		})

	res := h.do(t, apiRequest{method: http.MethodPost, path: "/api/simulations/batch", body: batchBody(2)})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))

	var out batchResponse
	res.decode(t, &out)
	assert.Equal(t, "batch-1", out.BatchID)
	require.Len(t, out.Simulations, 2)
	assert.Equal(t, "Trial #2", out.Simulations[1].Title)
	assert.Equal(t, "Successfully created and queued 2 simulation(s)", out.Message)
}

func TestAPI_CreateBatchValidation(t *testing.T) {
	h := newAPIHarness(t)

	tests := []struct {
		name  string
		body  any
		raw   []byte
		code  string
		field string
	}{
		{name: "count zero", body: batchBody(0), code: "validation", field: "count"},
		{name: "count too large", body: batchBody(101), code: "validation", field: "count"},
		{
			name: "3D without z",
			body: map[string]any{
				"simulationData": map[string]any{"mode": "3D", "tumorCount": 10},
				"count":          1,
			},
			code:  "validation",
			field: "z",
		},
		{name: "unknown field", raw: []byte(`{"count":1,"colour":"red"}`), code: "invalid_json"},
		{name: "malformed", raw: []byte(`{"count":`), code: "invalid_json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.do(t, apiRequest{method: http.MethodPost, path: "/api/simulations/batch", body: tt.body, raw: tt.raw})
			assert.Equal(t, http.StatusBadRequest, res.status)
			var e errorBody
			res.decode(t, &e)
			assert.Equal(t, tt.code, e.Error)
			assert.Equal(t, tt.field, e.Field)
		})
	}
}

func TestAPI_CreateBatchDuplicateIdempotencyKey(t *testing.T) {
	h := newAPIHarness(t)
	h.cache.EXPECT().
		SetIfNotExists(gomock.Any(), "simulation:idempotency:user-1:key-1", gomock.Any(), gomock.Any()).
		Return(false, nil)

	res := h.do(t, apiRequest{
		method:  http.MethodPost,
		path:    "/api/simulations/batch",
		body:    batchBody(1),
		headers: map[string]string{HeaderIdempotencyKey: "key-1"},
	})
	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, "duplicate_request", res.errorCode(t))
}

func TestAPI_CreateBatchStoreFailureHidesDetails(t *testing.T) {
	h := newAPIHarness(t)
	h.repo.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).Return(nil, errors.New("pq: secret internals"))

	res := h.do(t, apiRequest{method: http.MethodPost, path: "/api/simulations/batch", body: batchBody(1)})
	assert.Equal(t, http.StatusInternalServerError, res.status)
	assert.NotContains(t, string(res.body), "secret internals")
}

func TestAPI_Results(t *testing.T) {
	done := &model.Simulation{
		ID:     7,
		UserID: "user-1",
		Status: model.SimulationStatusDone,
		Result: &model.SimulationResult{SurvivalRate: 88.5},
	}

	t.Run("done", func(t *testing.T) {
		h := newAPIHarness(t)
		h.cache.EXPECT().Get(gomock.Any(), "simulation:result:7").Return(nil, nil)
		h.repo.EXPECT().GetByID(gomock.Any(), int64(7)).Return(done, nil)
		h.cache.EXPECT().Set(gomock.Any(), "simulation:result:7", gomock.Any(), gomock.Any()).Return(nil)

		res := h.do(t, apiRequest{method: http.MethodGet, path: "/api/simulations/7/results"})
		require.Equal(t, http.StatusOK, res.status, string(res.body))
		var out resultResponse
		res.decode(t, &out)
		assert.Equal(t, int64(7), out.ID)
		require.NotNil(t, out.Result)
		assert.InDelta(t, 88.5, out.Result.SurvivalRate, 0)
	})

	t.Run("not ready", func(t *testing.T) {
		h := newAPIHarness(t)
		h.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil)
		h.repo.EXPECT().GetByID(gomock.Any(), int64(7)).Return(&model.Simulation{
			ID: 7, UserID: "user-1", Status: model.SimulationStatusRunning,
		}, nil)

		res := h.do(t, apiRequest{method: http.MethodGet, path: "/api/simulations/7/results"})
		assert.Equal(t, http.StatusConflict, res.status)
		assert.Equal(t, "not_ready", res.errorCode(t))
	})

	t.Run("other owner", func(t *testing.T) {
		h := newAPIHarness(t)
		h.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil)
		other := *done
		other.UserID = "user-2"
		h.repo.EXPECT().GetByID(gomock.Any(), int64(7)).Return(&other, nil)

		res := h.do(t, apiRequest{method: http.MethodGet, path: "/api/simulations/7/results"})
		assert.Equal(t, http.StatusNotFound, res.status)
		assert.Equal(t, "not_found", res.errorCode(t))
	})

	t.Run("invalid id", func(t *testing.T) {
		h := newAPIHarness(t)
		res := h.do(t, apiRequest{method: http.MethodGet, path: "/api/simulations/abc/results"})
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Equal(t, "invalid_path", res.errorCode(t))
	})
}

func TestAPI_GetListDelete(t *testing.T) {
	h := newAPIHarness(t)
	sim := &model.Simulation{ID: 3, UserID: "user-1", Title: "Trial", Status: model.SimulationStatusSubmitted,
		CreatedAt: time.Now()}

	h.repo.EXPECT().GetForOwner(gomock.Any(), int64(3), "user-1").Return(sim, nil)
	res := h.do(t, apiRequest{method: http.MethodGet, path: "/api/simulations/3"})
	require.Equal(t, http.StatusOK, res.status)
	var got model.Simulation
	res.decode(t, &got)
	assert.Equal(t, model.SimulationStatusSubmitted, got.Status)

	h.repo.EXPECT().ListByOwner(gomock.Any(), model.SimulationListOptions{UserID: "user-1", Limit: 200, Offset: 5}).
		Return(nil, nil)
	res = h.do(t, apiRequest{method: http.MethodGet, path: "/api/simulations?limit=500&offset=5"})
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, string(res.body), `"simulations":[]`)

	h.repo.EXPECT().DeleteForOwner(gomock.Any(), int64(3), "user-1").Return(nil)
	h.cache.EXPECT().Delete(gomock.Any(), "simulation:result:3").Return(true, nil)
	res = h.do(t, apiRequest{method: http.MethodDelete, path: "/api/simulations/3"})
	assert.Equal(t, http.StatusNoContent, res.status)

	h.repo.EXPECT().DeleteForOwner(gomock.Any(), int64(4), "user-1").Return(data.ErrSimulationNotFound)
	res = h.do(t, apiRequest{method: http.MethodDelete, path: "/api/simulations/4"})
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestAPI_Stats(t *testing.T) {
	h := newAPIHarness(t)
	h.repo.EXPECT().Stats(gomock.Any(), "user-1").Return(&model.SimulationStats{Submitted: 2, Done: 1}, nil)

	res := h.do(t, apiRequest{method: http.MethodGet, path: "/api/simulations/stats"})
	require.Equal(t, http.StatusOK, res.status)
	assert.JSONEq(t, `{"submitted":2,"running":0,"done":1}`, string(res.body))
}

func TestAPI_Import(t *testing.T) {
	doc := `{"wrapper":{"title":"Imported","mode":"2D","substrate":"Oxygen","duration":5,"tumorCount":100}}`

	t.Run("validates and normalizes", func(t *testing.T) {
		h := newAPIHarness(t)
		res := h.do(t, apiRequest{
			method: http.MethodPost,
			path:   "/api/simulations/import?count=3&path=wrapper",
			raw:    []byte(doc),
		})
		require.Equal(t, http.StatusOK, res.status, string(res.body))

		var out struct {
			SimulationData model.SimulationInput `json:"simulationData"`
			Count          int                   `json:"count"`
			Message        string                `json:"message"`
		}
		res.decode(t, &out)
		assert.Equal(t, 3, out.Count)
		require.NotNil(t, out.SimulationData.ImmuneCount)
		assert.Equal(t, 50, *out.SimulationData.ImmuneCount)
		assert.Contains(t, out.Message, "3 simulation(s)")
	})

	t.Run("count required", func(t *testing.T) {
		h := newAPIHarness(t)
		res := h.do(t, apiRequest{method: http.MethodPost, path: "/api/simulations/import", raw: []byte(doc)})
		assert.Equal(t, http.StatusBadRequest, res.status)
	})

	t.Run("count out of range", func(t *testing.T) {
		h := newAPIHarness(t)
		res := h.do(t, apiRequest{
			method: http.MethodPost,
			path:   "/api/simulations/import?count=1001&path=wrapper",
			raw:    []byte(doc),
		})
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Equal(t, "validation", res.errorCode(t))
	})

	t.Run("body too large", func(t *testing.T) {
		h := newAPIHarness(t, func(o *RouterServices) { o.MaxImportBytes = 16 })
		res := h.do(t, apiRequest{
			method: http.MethodPost,
			path:   "/api/simulations/import?count=1",
			raw:    []byte(strings.Repeat(" ", 64) + doc),
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, res.status)
		assert.Equal(t, "too_large", res.errorCode(t))
	})
}

func TestAPI_DevHeaderIdentity(t *testing.T) {
	h := newAPIHarness(t)
	h.repo.EXPECT().Stats(gomock.Any(), "user-1").Return(&model.SimulationStats{}, nil)

	// The mock authenticator only honours the bearer token; the header is passed through untouched.
	res := h.do(t, apiRequest{
		method:  http.MethodGet,
		path:    "/api/simulations/stats",
		headers: map[string]string{HeaderUserID: "someone-else"},
	})
	require.Equal(t, http.StatusOK, res.status)
}
