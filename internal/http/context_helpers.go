package httpx

import (
	"context"

	domainauth "github.com/target/simqueue/internal/domain/auth"
)

// identityKey is an unexported context key type to avoid collisions across packages.
type identityKey struct{}

// SetIdentityInContext returns a child context that carries the caller identity.
func SetIdentityInContext(ctx context.Context, id domainauth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller identity and whether one was set.
func IdentityFromContext(ctx context.Context) (domainauth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domainauth.Identity)
	return id, ok && id.Valid()
}

// OwnerFromContext returns the owning user id, or "" when the request is unauthenticated.
func OwnerFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}
