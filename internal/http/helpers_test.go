package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/target/simqueue/internal/mocks"
	mockauth "github.com/target/simqueue/internal/mocks/auth"
	"github.com/target/simqueue/internal/service"
	"go.uber.org/mock/gomock"
)

const testToken = "token-1"

// apiHarness wires the router to gomock repositories and a static token authenticator.
type apiHarness struct {
	handler http.Handler
	repo    *mocks.MockSimulationRepository
	cache   *mocks.MockCacheRepository
	opts    RouterServices
}

func newAPIHarness(t *testing.T, mutate ...func(*RouterServices)) *apiHarness {
	t.Helper()
	ctrl := gomock.NewController(t)
	h := &apiHarness{
		repo:  mocks.NewMockSimulationRepository(ctrl),
		cache: mocks.NewMockCacheRepository(ctrl),
	}
	svc, err := service.NewSimulationService(service.SimulationServiceOptions{
		Repo:       h.repo,
		Cache:      h.cache,
		NewBatchID: func() string { return "batch-1" },
	})
	require.NoError(t, err)

	h.opts = RouterServices{
		Simulations: svc,
		Auth:        mockauth.NewMockAuthenticator(testToken, "user-1"),
	}
	for _, m := range mutate {
		m(&h.opts)
	}
	h.handler = NewRouter(h.opts)
	return h
}

type apiRequest struct {
	method  string
	path    string
	body    any
	raw     []byte
	headers map[string]string
	anon    bool
}

type apiResponse struct {
	status int
	header http.Header
	body   []byte
}

func (r apiResponse) decode(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, dst), "body: %s", r.body)
}

func (r apiResponse) errorCode(t *testing.T) string {
	t.Helper()
	var e errorBody
	r.decode(t, &e)
	return e.Error
}

func (h *apiHarness) do(t *testing.T, req apiRequest) apiResponse {
	t.Helper()
	var body io.Reader = http.NoBody
	switch {
	case req.raw != nil:
		body = bytes.NewReader(req.raw)
	case req.body != nil:
		b, err := json.Marshal(req.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	r := httptest.NewRequest(req.method, req.path, body)
	if !req.anon {
		r.Header.Set("Authorization", "Bearer "+testToken)
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, r)
	return apiResponse{status: rec.Code, header: rec.Header(), body: rec.Body.Bytes()}
}
