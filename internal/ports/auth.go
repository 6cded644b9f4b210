package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; HTTP middleware consumes them.

import (
	"context"

	domainauth "github.com/target/simqueue/internal/domain/auth"
)

// Authenticator resolves the owner of a request from its credentials.
// Implementations return an error wrapping domainauth.ErrUnauthenticated when no identity
// can be established.
type Authenticator interface {
	Authenticate(ctx context.Context, creds domainauth.Credentials) (domainauth.Identity, error)
}
