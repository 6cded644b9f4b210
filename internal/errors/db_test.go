package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, wantCode: ErrCodeCanceled},
		{name: "wrapped canceled", err: fmt.Errorf("query: %w", context.Canceled), wantCode: ErrCodeCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.err)
			if !IsAppError(err, tt.wantCode) {
				t.Errorf("MapDBError() code = %v, want %v", GetCode(err), tt.wantCode)
			}
			if !errors.Is(err, tt.err) && !errors.Is(err, errors.Unwrap(tt.err)) {
				t.Errorf("expected cause to be preserved")
			}
		})
	}
}

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	if !IsNotFound(err) {
		t.Errorf("MapDBError(pgx.ErrNoRows) should be NotFound, got %v", GetCode(err))
	}
}

func TestMapDBError_PgErrors(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantCode  ErrorCode
		wantField string
	}{
		{
			name: "unique violation with detail",
			pgErr: &pgconn.PgError{
				Code:   pgerrcode.UniqueViolation,
				Detail: "Key (message_id)=(abc) already exists.",
			},
			wantCode:  ErrCodeConflict,
			wantField: "message_id",
		},
		{
			name:      "unique violation with column metadata",
			pgErr:     &pgconn.PgError{Code: pgerrcode.UniqueViolation, ColumnName: "id"},
			wantCode:  ErrCodeConflict,
			wantField: "id",
		},
		{
			name:     "foreign key violation",
			pgErr:    &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, TableName: "simulation_outbox"},
			wantCode: ErrCodeNotFound,
		},
		{
			name:      "named check violation",
			pgErr:     &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "simulations_status_check"},
			wantCode:  ErrCodeValidation,
			wantField: "status",
		},
		{
			name:     "unnamed check violation",
			pgErr:    &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "other_check"},
			wantCode: ErrCodeValidation,
		},
		{
			name:      "not null violation",
			pgErr:     &pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "user_id"},
			wantCode:  ErrCodeValidation,
			wantField: "user_id",
		},
		{
			name:     "serialization failure",
			pgErr:    &pgconn.PgError{Code: pgerrcode.SerializationFailure},
			wantCode: ErrCodeConflict,
		},
		{
			name:     "unhandled code",
			pgErr:    &pgconn.PgError{Code: pgerrcode.DiskFull},
			wantCode: ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(fmt.Errorf("exec: %w", tt.pgErr))
			if GetCode(err) != tt.wantCode {
				t.Errorf("code = %v, want %v", GetCode(err), tt.wantCode)
			}
			if GetField(err) != tt.wantField {
				t.Errorf("field = %q, want %q", GetField(err), tt.wantField)
			}
			var pgErr *pgconn.PgError
			if !errors.As(err, &pgErr) {
				t.Errorf("expected PgError to remain reachable via errors.As")
			}
		})
	}
}

func TestMapDBError_UnknownPassthrough(t *testing.T) {
	orig := errors.New("boom")
	if err := MapDBError(orig); !errors.Is(err, orig) || GetCode(err) != "" {
		t.Errorf("expected unknown errors to pass through unchanged, got %v", err)
	}
}
