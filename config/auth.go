package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOIDC verifies bearer tokens against an OIDC provider.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeDev trusts the X-User-ID header (for development only).
	AuthModeDev AuthMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oidc", "dev":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, dev)", v)
	}
}

// OIDCConfig contains OIDC bearer-token verification settings.
type OIDCConfig struct {
	IssuerURL string `env:"ISSUER_URL"`
	ClientID  string `env:"CLIENT_ID"  envDefault:"simqueue"`

	// UserInfoFallback resolves opaque access tokens through the provider's userinfo endpoint
	// when they fail ID token verification.
	UserInfoFallback bool `env:"USERINFO_FALLBACK" envDefault:"false"`
}

// DevAuthConfig controls dev authentication identity.
type DevAuthConfig struct {
	UserID string `env:"USER_ID" envDefault:"dev-user"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity resolver to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when Mode=dev).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims identity settings.
func (a *AuthConfig) Sanitize() {
	a.OIDC.IssuerURL = strings.TrimSpace(a.OIDC.IssuerURL)
	a.OIDC.ClientID = strings.TrimSpace(a.OIDC.ClientID)
	a.DevAuth.UserID = strings.TrimSpace(a.DevAuth.UserID)
	if a.DevAuth.UserID == "" {
		a.DevAuth.UserID = "dev-user"
	}
}
