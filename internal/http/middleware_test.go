package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/simqueue/internal/domain/auth"
	mockauth "github.com/target/simqueue/internal/mocks/auth"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRequireIdentity_PassesIdentity(t *testing.T) {
	authn := mockauth.NewMockAuthenticator("tok", "user-9")
	var got string
	h := RequireIdentity(authn, discardLogger())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = OwnerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set(HeaderUserID, "hdr-user")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user-9", got)
	calls := authn.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "tok", calls[0].BearerToken)
	assert.Equal(t, "hdr-user", calls[0].UserID)
}

func TestRequireIdentity_BackendError(t *testing.T) {
	authn := &mockauth.MockAuthenticator{
		AuthenticateFunc: func(context.Context, domainauth.Credentials) (domainauth.Identity, error) {
			return domainauth.Identity{}, errors.New("idp timeout")
		},
	}
	called := false
	h := RequireIdentity(authn, discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecover(t *testing.T) {
	h := Recover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"internal"`)
}

func TestLogging_RequestID(t *testing.T) {
	h := Logging(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)
}
