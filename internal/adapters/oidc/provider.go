package oidc

// Package oidc authenticates API callers by verifying bearer tokens against an OIDC provider.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/target/simqueue/internal/domain/auth"
	"github.com/target/simqueue/internal/ports"
	"golang.org/x/oauth2"
)

var _ ports.Authenticator = (*Provider)(nil)

// Provider verifies bearer tokens as OIDC ID tokens, optionally falling back to the
// provider's UserInfo endpoint for opaque access tokens.
type Provider struct {
	httpClient       *http.Client
	userInfoFallback bool
	logger           *slog.Logger

	// go-oidc provider and verifier
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	IssuerURL        string
	ClientID         string
	UserInfoFallback bool
	HTTPClient       *http.Client // Optional, defaults to a client with a 30s timeout
	Logger           *slog.Logger // Optional
}

// NewProvider performs discovery against the issuer and builds the token verifier.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	issuer := strings.TrimSuffix(config.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Provider{
		httpClient:       httpClient,
		userInfoFallback: config.UserInfoFallback,
		logger:           logger.With("component", "oidc_auth"),
		oidcProvider:     op,
		verifier:         op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
	}, nil
}

// idTokenClaims are the claims read from a verified ID token.
type idTokenClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// Authenticate resolves the token owner. The owner is always the sub claim.
func (p *Provider) Authenticate(ctx context.Context, creds domainauth.Credentials) (domainauth.Identity, error) {
	if creds.BearerToken == "" {
		return domainauth.Identity{}, fmt.Errorf("missing bearer token: %w", domainauth.ErrUnauthenticated)
	}
	ctx = gooidc.ClientContext(ctx, p.httpClient)

	id, verifyErr := p.fromIDToken(ctx, creds.BearerToken)
	if verifyErr == nil {
		return id, nil
	}
	if !p.userInfoFallback {
		return domainauth.Identity{}, fmt.Errorf("verify id_token: %w: %w", domainauth.ErrUnauthenticated, verifyErr)
	}

	id, err := p.fromUserInfo(ctx, creds.BearerToken)
	if err != nil {
		p.logger.DebugContext(ctx, "bearer token rejected",
			"id_token_error", verifyErr,
			"userinfo_error", err,
		)
		return domainauth.Identity{}, fmt.Errorf("userinfo: %w: %w", domainauth.ErrUnauthenticated, err)
	}
	return id, nil
}

func (p *Provider) fromIDToken(ctx context.Context, raw string) (domainauth.Identity, error) {
	tok, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return domainauth.Identity{}, err
	}
	var claims idTokenClaims
	if claimsErr := tok.Claims(&claims); claimsErr != nil {
		return domainauth.Identity{}, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	id := domainauth.Identity{
		UserID:    firstNonEmpty(claims.Sub, tok.Subject),
		Email:     claims.Email,
		Source:    "id_token",
		ExpiresAt: tok.Expiry,
	}
	if !id.Valid() {
		return domainauth.Identity{}, errors.New("id_token has no subject")
	}
	return id, nil
}

func (p *Provider) fromUserInfo(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("fetch user info: %w", err)
	}
	id := domainauth.Identity{UserID: ui.Subject, Email: ui.Email, Source: "userinfo"}
	if !id.Valid() {
		return domainauth.Identity{}, errors.New("user info has no subject")
	}
	return id, nil
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
