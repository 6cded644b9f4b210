package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"

	domainauth "github.com/target/simqueue/internal/domain/auth"
	"github.com/target/simqueue/internal/ports"
)

var _ ports.Authenticator = (*MockAuthenticator)(nil)

// MockAuthenticator maps bearer tokens to identities and records every call.
type MockAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, creds domainauth.Credentials) (domainauth.Identity, error)

	// Tokens maps bearer tokens to the identity they resolve to.
	Tokens map[string]domainauth.Identity

	mu    sync.Mutex
	calls []domainauth.Credentials
}

// NewMockAuthenticator creates a MockAuthenticator accepting a single token for userID.
func NewMockAuthenticator(token, userID string) *MockAuthenticator {
	return &MockAuthenticator{
		Tokens: map[string]domainauth.Identity{
			token: {UserID: userID, Source: "mock"},
		},
	}
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, creds domainauth.Credentials) (domainauth.Identity, error) {
	m.mu.Lock()
	m.calls = append(m.calls, creds)
	m.mu.Unlock()

	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, creds)
	}
	id, ok := m.Tokens[creds.BearerToken]
	if !ok || creds.BearerToken == "" {
		return domainauth.Identity{}, domainauth.ErrUnauthenticated
	}
	return id, nil
}

// Calls returns the credentials passed to Authenticate so far.
func (m *MockAuthenticator) Calls() []domainauth.Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domainauth.Credentials(nil), m.calls...)
}
