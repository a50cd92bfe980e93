package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlhub/internal/platform/config"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "secret", AccessTokenTTL: time.Hour})

	token, err := svc.GenerateAccessToken("usr_1", "ops@communitee.io", "admin")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", claims.UserID)
	assert.Equal(t, "ops@communitee.io", claims.Email)
	assert.Equal(t, "admin", claims.Role)
}

func TestTokenService_Rejects(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "secret", AccessTokenTTL: time.Hour})
	other := NewTokenService(config.JWTConfig{Secret: "other", AccessTokenTTL: time.Hour})

	token, err := other.GenerateAccessToken("usr_1", "a@b.c", "member")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err, "wrong signing key")

	_, err = svc.ValidateToken("not-a-jwt")
	assert.Error(t, err)

	expired := NewTokenService(config.JWTConfig{Secret: "secret", AccessTokenTTL: time.Hour})
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err = expired.GenerateAccessToken("usr_1", "a@b.c", "member")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err, "expired token")
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}
