package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/adapters/devauth"
	domainauth "github.com/target/simqueue/internal/domain/auth"
)

func TestBuildAuthenticator(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("dev mode", func(t *testing.T) {
		authn, err := BuildAuthenticator(context.Background(), AuthConfig{
			Auth: config.AuthConfig{
				Mode:    config.AuthModeDev,
				DevAuth: config.DevAuthConfig{UserID: "dev-user"},
			},
			IsDev:  true,
			Logger: logger,
		})
		require.NoError(t, err)
		require.IsType(t, &devauth.Provider{}, authn)

		id, err := authn.Authenticate(context.Background(), domainauth.Credentials{})
		require.NoError(t, err)
		assert.Equal(t, "dev-user", id.UserID)
	})

	t.Run("dev mode outside development", func(t *testing.T) {
		_, err := BuildAuthenticator(context.Background(), AuthConfig{
			Auth:   config.AuthConfig{Mode: config.AuthModeDev},
			Logger: logger,
		})
		require.Error(t, err)
	})

	t.Run("oidc without issuer", func(t *testing.T) {
		_, err := BuildAuthenticator(context.Background(), AuthConfig{
			Auth:   config.AuthConfig{Mode: config.AuthModeOIDC, OIDC: config.OIDCConfig{ClientID: "simqueue"}},
			Logger: logger,
		})
		require.ErrorContains(t, err, "OIDC_ISSUER_URL")
	})

	t.Run("oidc discovery failure", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := BuildAuthenticator(ctx, AuthConfig{
			Auth: config.AuthConfig{
				Mode: config.AuthModeOIDC,
				OIDC: config.OIDCConfig{IssuerURL: "http://127.0.0.1:1", ClientID: "simqueue"},
			},
			Logger: logger,
		})
		require.Error(t, err)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := BuildAuthenticator(context.Background(), AuthConfig{
			Auth: config.AuthConfig{Mode: config.AuthMode("saml")},
		})
		require.Error(t, err)
	})
}
