package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/target/simqueue/internal/errors"
	"github.com/target/simqueue/internal/service"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, ErrorParams{Code: http.StatusRequestEntityTooLarge, ErrCode: "too_large", Err: err})
			return false
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}
	if dec.More() {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_json",
			Err:     errors.New("request body must contain a single JSON object"),
		})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
	Field   string
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, errorBody{Error: p.ErrCode, Message: p.Err.Error(), Field: p.Field})
}

// statusByCode maps AppError codes to HTTP status codes.
var statusByCode = map[apperrors.ErrorCode]int{ //nolint:gochecknoglobals // read-only lookup
	apperrors.ErrCodeNotFound:     http.StatusNotFound,
	apperrors.ErrCodeConflict:     http.StatusConflict,
	apperrors.ErrCodeValidation:   http.StatusBadRequest,
	apperrors.ErrCodeNotReady:     http.StatusConflict,
	apperrors.ErrCodeUnauthorized: http.StatusUnauthorized,
	apperrors.ErrCodeTimeout:      http.StatusGatewayTimeout,
	apperrors.ErrCodeCanceled:     499,
	apperrors.ErrCodeInternal:     http.StatusInternalServerError,
}

// WriteAppError maps err to a status code and error code and writes it.
// Internal errors are logged and their message is not exposed.
func WriteAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := apperrors.GetCode(err)
	switch {
	case code == "" && errors.Is(err, context.DeadlineExceeded):
		code = apperrors.ErrCodeTimeout
	case code == "" && errors.Is(err, context.Canceled):
		code = apperrors.ErrCodeCanceled
	case code == "":
		code = apperrors.ErrCodeInternal
	}

	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	errCode := string(code)
	if errors.Is(err, service.ErrDuplicateRequest) {
		errCode = "duplicate_request"
	}

	if status >= http.StatusInternalServerError {
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		WriteError(w, ErrorParams{Code: status, ErrCode: errCode, Err: errors.New(http.StatusText(status))})
		return
	}

	WriteError(w, ErrorParams{Code: status, ErrCode: errCode, Err: err, Field: apperrors.GetField(err)})
}

// readLimited reads at most limit bytes from r. A larger body fails with http.MaxBytesError.
func readLimited(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
}
