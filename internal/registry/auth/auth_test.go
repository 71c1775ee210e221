package auth

import (
	"testing"
	"time"

	"github.com/songzhibin97/mailregistry/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	hash, err := hasher.HashPassword("motdepasse")
	require.NoError(t, err)
	assert.NotEqual(t, "motdepasse", hash)

	assert.NoError(t, hasher.VerifyPassword("motdepasse", hash))
	assert.Error(t, hasher.VerifyPassword("autrechose", hash))
	assert.Error(t, hasher.VerifyPassword("", hash))

	_, err = hasher.HashPassword("")
	assert.Error(t, err)
}

func TestJWTRoundTrip(t *testing.T) {
	jm, err := NewJWTManager("secret", "HS256", time.Hour, "mailregistry-test")
	require.NoError(t, err)

	caller := registry.Caller{ID: "ABCD", Role: registry.RoleUser, Kind: registry.PrincipalUser}
	token, expiresAt, err := jm.GenerateToken(caller)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := jm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, caller, claims.Caller())
}

func TestJWTRejects(t *testing.T) {
	jm, err := NewJWTManager("secret", "HS256", time.Hour, "issuer-a")
	require.NoError(t, err)
	other, err := NewJWTManager("other-secret", "HS256", time.Hour, "issuer-a")
	require.NoError(t, err)
	foreign, err := NewJWTManager("secret", "HS256", time.Hour, "issuer-b")
	require.NoError(t, err)
	expired, err := NewJWTManager("secret", "HS256", time.Nanosecond, "issuer-a")
	require.NoError(t, err)

	caller := registry.Caller{ID: "1", Role: registry.RoleAdmin, Kind: registry.PrincipalAdmin}

	forged, _, err := other.GenerateToken(caller)
	require.NoError(t, err)
	_, err = jm.ValidateToken(forged)
	assert.Error(t, err, "wrong secret")

	wrongIssuer, _, err := foreign.GenerateToken(caller)
	require.NoError(t, err)
	_, err = jm.ValidateToken(wrongIssuer)
	assert.Error(t, err, "wrong issuer")

	stale, _, err := expired.GenerateToken(caller)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = jm.ValidateToken(stale)
	assert.Error(t, err, "expired")

	_, err = jm.ValidateToken("")
	assert.Error(t, err)

	_, _, err = jm.GenerateToken(registry.Caller{ID: "X", Role: "ROOT"})
	assert.Error(t, err)
}

func TestNewJWTManagerValidation(t *testing.T) {
	_, err := NewJWTManager("", "HS256", time.Hour, "")
	assert.Error(t, err)

	_, err = NewJWTManager("secret", "NOPE", time.Hour, "")
	assert.Error(t, err)
}
