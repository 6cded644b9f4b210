package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/adapters/devauth"
	"github.com/target/simqueue/internal/adapters/oidc"
	"github.com/target/simqueue/internal/ports"
)

// AuthConfig contains configuration for the request authenticator.
type AuthConfig struct {
	Auth   config.AuthConfig
	IsDev  bool
	Logger *slog.Logger
}

// BuildAuthenticator creates the authenticator for the configured auth mode.
// Dev mode trusts the X-User-ID header and is refused outside development.
//
//nolint:ireturn // Callers depend on the port, not the provider.
func BuildAuthenticator(ctx context.Context, cfg AuthConfig) (ports.Authenticator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Auth.Mode {
	case config.AuthModeDev:
		if !cfg.IsDev {
			return nil, errors.New("dev auth mode requires DEV=true")
		}
		logger.Warn("dev auth enabled: requests are trusted by header", "default_user", cfg.Auth.DevAuth.UserID)
		return devauth.NewProvider(devauth.Config{DefaultUserID: cfg.Auth.DevAuth.UserID}), nil

	case config.AuthModeOIDC, "":
		if cfg.Auth.OIDC.IssuerURL == "" {
			return nil, errors.New("OIDC_ISSUER_URL is required in oidc auth mode")
		}
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			IssuerURL:        cfg.Auth.OIDC.IssuerURL,
			ClientID:         cfg.Auth.OIDC.ClientID,
			UserInfoFallback: cfg.Auth.OIDC.UserInfoFallback,
			Logger:           logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create OIDC provider: %w", err)
		}
		return prov, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}
