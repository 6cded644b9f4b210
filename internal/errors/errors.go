// Package errors defines AppError, the coded error shared by repositories,
// services and the HTTP layer. Handlers map Code to a status; Message and
// Field are safe to show to API callers.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable category of an AppError.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "not_found"
	ErrCodeConflict     ErrorCode = "conflict"
	ErrCodeValidation   ErrorCode = "validation"
	ErrCodeNotReady     ErrorCode = "not_ready" // row exists but has not reached Done
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	ErrCodeInternal     ErrorCode = "internal"
	ErrCodeTimeout      ErrorCode = "timeout"
	ErrCodeCanceled     ErrorCode = "canceled"
)

// AppError carries a code, a caller-facing message, the input field at
// fault (validation only) and the underlying cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Field   string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches another *AppError by code, so errors.Is(err, &AppError{Code: c})
// works through any amount of wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

func Validationf(format string, args ...any) *AppError {
	return Validation(fmt.Sprintf(format, args...))
}

// ValidationField is a validation error attributed to one input field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

func NotReady(message string) *AppError {
	return &AppError{Code: ErrCodeNotReady, Message: message}
}

func Unauthorized(message string) *AppError {
	return &AppError{Code: ErrCodeUnauthorized, Message: message}
}

// Wrap attaches code and message to err. It returns nil for a nil err.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

func as(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsAppError reports whether the first AppError in err's chain has code.
func IsAppError(err error, code ErrorCode) bool {
	e := as(err)
	return e != nil && e.Code == code
}

func IsNotFound(err error) bool     { return IsAppError(err, ErrCodeNotFound) }
func IsConflict(err error) bool     { return IsAppError(err, ErrCodeConflict) }
func IsValidation(err error) bool   { return IsAppError(err, ErrCodeValidation) }
func IsNotReady(err error) bool     { return IsAppError(err, ErrCodeNotReady) }
func IsUnauthorized(err error) bool { return IsAppError(err, ErrCodeUnauthorized) }

// GetCode returns the code of the first AppError in err's chain, or "".
func GetCode(err error) ErrorCode {
	if e := as(err); e != nil {
		return e.Code
	}
	return ""
}

// GetField returns the offending field of the first AppError in err's chain, or "".
func GetField(err error) string {
	if e := as(err); e != nil {
		return e.Field
	}
	return ""
}
