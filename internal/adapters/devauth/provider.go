package devauth

// Package devauth provides a config-driven Authenticator for local development.

import (
	"context"
	"fmt"
	"strings"

	domainauth "github.com/target/simqueue/internal/domain/auth"
	"github.com/target/simqueue/internal/ports"
)

var _ ports.Authenticator = (*Provider)(nil)

// HeaderUserID names the request header that selects the dev identity.
const HeaderUserID = "X-User-ID"

// Config controls the dev auth provider behavior.
type Config struct {
	// DefaultUserID is used when the request carries no X-User-ID header.
	// Empty means requests without the header are rejected.
	DefaultUserID string
}

// Provider trusts the X-User-ID header and falls back to a configured user.
// It never inspects bearer tokens and must not be enabled in production.
type Provider struct {
	defaultUserID string
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) *Provider {
	return &Provider{defaultUserID: strings.TrimSpace(cfg.DefaultUserID)}
}

// Authenticate returns the header identity, or the default user when the header is absent.
func (p *Provider) Authenticate(_ context.Context, creds domainauth.Credentials) (domainauth.Identity, error) {
	userID := strings.TrimSpace(creds.UserID)
	if userID == "" {
		userID = p.defaultUserID
	}
	if userID == "" {
		return domainauth.Identity{}, fmt.Errorf("dev auth: missing %s header: %w", HeaderUserID, domainauth.ErrUnauthenticated)
	}
	return domainauth.Identity{UserID: userID, Source: "dev"}, nil
}
