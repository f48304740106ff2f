package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-dev/agentflow/pkg/store"
	"github.com/agentflow-dev/agentflow/test/util"
)

func newTestService(t *testing.T, domains ...string) *Service {
	t.Helper()
	st := store.New(util.SetupTestDatabase(t))
	return NewService(st, "test-secret", domains)
}

func TestCreateUserAndSignIn(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "Dev@Example.com", "hunter22pass")
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", user.Email)

	token, principal, err := s.SignIn(ctx, "dev@example.com", "hunter22pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, principal.UserID)

	_, _, err = s.SignIn(ctx, "dev@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = s.SignIn(ctx, "nobody@example.com", "hunter22pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUserValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "not-an-email", "hunter22pass")
	assert.True(t, store.IsValidationError(err))

	_, err = s.CreateUser(ctx, "dev@example.com", "short")
	assert.True(t, store.IsValidationError(err))
}

func TestAllowedEmailDomains(t *testing.T) {
	s := newTestService(t, "example.com")
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "dev@example.com", "hunter22pass")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "dev@other.org", "hunter22pass")
	assert.ErrorIs(t, err, ErrEmailDomainNotAllowed)
}

func TestVerifySessionToken(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "dev@example.com", "hunter22pass")
	require.NoError(t, err)
	token, _, err := s.SignIn(ctx, "dev@example.com", "hunter22pass")
	require.NoError(t, err)

	principal, err := s.VerifySessionToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.UserID)
	assert.Equal(t, "dev@example.com", principal.Email)

	_, err = s.VerifySessionToken(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// token signed with a different secret is rejected
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256,
		jwt.RegisteredClaims{Subject: user.ID}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = s.VerifySessionToken(ctx, forged)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// alg=none is rejected
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone,
		jwt.RegisteredClaims{Subject: user.ID}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.VerifySessionToken(ctx, none)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAPIKeyFlow(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "dev@example.com", "hunter22pass")
	require.NoError(t, err)

	key, token, err := s.CreateAPIKey(ctx, user.ID, "laptop")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, APIKeyPrefix))
	assert.NotContains(t, key.KeyHash, token)

	principal, err := s.VerifyAPIKey(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.UserID)

	_, err = s.VerifyAPIKey(ctx, "agentflow_deadbeef")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.VerifyAPIKey(ctx, "wrongprefix_"+token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	keys, err := s.ListAPIKeys(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "laptop", keys[0].Name)
}
