package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/target/simqueue/internal/domain/auth"
	"github.com/target/simqueue/internal/ports"
)

const (
	// HeaderRequestID carries the correlation id echoed on every response.
	HeaderRequestID = "X-Request-ID"
	// HeaderUserID selects the caller in dev auth mode.
	HeaderUserID = "X-User-ID"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := strings.TrimSpace(r.Header.Get(HeaderRequestID))
			if reqID == "" || len(reqID) > 128 {
				reqID = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, reqID)

			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", reqID),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
						panic(err)
					}
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					WriteError(w, ErrorParams{
						Code:    http.StatusInternalServerError,
						ErrCode: "internal",
						Err:     errors.New("internal server error"),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity returns a middleware that resolves the caller through authn.
// Requests without a valid identity get a 401 Unauthorized response.
func RequireIdentity(authn ports.Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := domainauth.Credentials{
				BearerToken: domainauth.BearerFromHeader(r.Header.Get("Authorization")),
				UserID:      r.Header.Get(HeaderUserID),
			}
			id, err := authn.Authenticate(r.Context(), creds)
			if err != nil || !id.Valid() {
				if err != nil && !errors.Is(err, domainauth.ErrUnauthenticated) {
					logger.WarnContext(r.Context(), "authentication backend error", "error", err)
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="simqueue"`)
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "unauthorized",
					Err:     errors.New("authentication required"),
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(SetIdentityInContext(r.Context(), id)))
		})
	}
}
