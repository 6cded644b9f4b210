package auth

// Package auth contains domain-level types for caller identity.
// It is pure and free of framework/adapter concerns.

import (
	"errors"
	"strings"
	"time"
)

// ErrUnauthenticated is returned when no identity can be established for a request.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity represents the authenticated principal that owns simulations.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	UserID    string // stable owner identifier (the OIDC sub claim or the dev header)
	Email     string
	Source    string    // which resolver produced the identity: id_token, userinfo or dev
	ExpiresAt time.Time // zero when the resolver has no expiry
}

// Valid reports whether the identity names an owner.
func (i Identity) Valid() bool { return strings.TrimSpace(i.UserID) != "" }

// Credentials carries the request material an authenticator may inspect.
type Credentials struct {
	BearerToken string
	UserID      string // X-User-ID header, honoured only by the dev authenticator
}

// BearerFromHeader extracts the token from an Authorization header value.
func BearerFromHeader(h string) string {
	const prefix = "bearer "
	h = strings.TrimSpace(h)
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
