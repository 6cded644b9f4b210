// Package errors classifies errors into short labels for metric tags and notifications.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Classify returns a normalized error type name suitable for tagging metrics/logs.
// Context and database errors get stable names; anything else is named after the
// innermost concrete type in snake_case.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	}

	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) && pgErr.Code != "" {
		return "pg_" + pgErr.Code
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
