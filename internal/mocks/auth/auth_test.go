package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/simqueue/internal/domain/auth"
)

func TestMockAuthenticator_Tokens(t *testing.T) {
	m := NewMockAuthenticator("tok", "user-1")
	ctx := context.Background()

	id, err := m.Authenticate(ctx, domainauth.Credentials{BearerToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)

	_, err = m.Authenticate(ctx, domainauth.Credentials{BearerToken: "other"})
	require.ErrorIs(t, err, domainauth.ErrUnauthenticated)

	_, err = m.Authenticate(ctx, domainauth.Credentials{})
	require.ErrorIs(t, err, domainauth.ErrUnauthenticated)

	assert.Len(t, m.Calls(), 3)
}

func TestMockAuthenticator_CustomFunc(t *testing.T) {
	boom := errors.New("idp down")
	m := &MockAuthenticator{
		AuthenticateFunc: func(context.Context, domainauth.Credentials) (domainauth.Identity, error) {
			return domainauth.Identity{}, boom
		},
	}
	_, err := m.Authenticate(context.Background(), domainauth.Credentials{BearerToken: "x"})
	require.ErrorIs(t, err, boom)
}
