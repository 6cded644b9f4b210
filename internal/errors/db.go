package errors

import (
	"context"
	"errors"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueKeyDetail pulls the column out of "Key (message_id)=(abc) already exists.".
var uniqueKeyDetail = regexp.MustCompile(`Key \(([^)]+)\)=`)

// checkConstraintFields maps the named CHECK constraints in the migrations
// to the API field each one guards.
var checkConstraintFields = map[string]string{ //nolint:gochecknoglobals // read-only lookup table
	"simulations_status_check":      "status",
	"simulations_result_done_check": "result",
	"simulations_mode_check":        "mode",
	"simulations_duration_check":    "duration",
	"simulations_tumor_count_check": "tumorCount",
	"simulations_title_check":       "title",
}

type pgMapping struct {
	code    ErrorCode
	message string
	field   func(*pgconn.PgError) string
}

var pgMappings = map[string]pgMapping{ //nolint:gochecknoglobals // read-only lookup table
	pgerrcode.UniqueViolation: {ErrCodeConflict, "This value already exists.", uniqueField},
	// The only foreign key is outbox -> simulations, so the parent row is gone.
	pgerrcode.ForeignKeyViolation: {ErrCodeNotFound, "The referenced simulation no longer exists.", nil},
	pgerrcode.CheckViolation: {ErrCodeValidation, "This field has an invalid value.", func(e *pgconn.PgError) string {
		return checkConstraintFields[e.ConstraintName]
	}},
	pgerrcode.NotNullViolation: {ErrCodeValidation, "This field is required.", func(e *pgconn.PgError) string {
		return e.ColumnName
	}},
	pgerrcode.SerializationFailure: {ErrCodeConflict, "The record is busy. Please try again.", nil},
	pgerrcode.DeadlockDetected:     {ErrCodeConflict, "The record is busy. Please try again.", nil},
	pgerrcode.LockNotAvailable:     {ErrCodeConflict, "The record is busy. Please try again.", nil},
}

// MapDBError converts driver and context errors into AppErrors, keeping the
// original as Cause. Errors it does not recognise are returned unchanged.
func MapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "Request timed out. Please try again.")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "Request was canceled.")
	case errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "Resource not found")
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	m, ok := pgMappings[pgErr.Code]
	if !ok {
		return Wrap(pgErr, ErrCodeInternal, "A database error occurred. Please try again.")
	}
	appErr := Wrap(pgErr, m.code, m.message)
	if m.field != nil {
		appErr.Field = m.field(pgErr)
	}
	return appErr
}

func uniqueField(e *pgconn.PgError) string {
	if e.ColumnName != "" {
		return e.ColumnName
	}
	if m := uniqueKeyDetail.FindStringSubmatch(e.Detail); len(m) == 2 {
		return m[1]
	}
	return ""
}
