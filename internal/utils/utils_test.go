package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	tok, err := NewAccessToken("s3cret", "https://me.example/", "https://app.example/", "create update", exp)
	require.NoError(t, err)

	claims, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "https://me.example/", claims.Me)
	assert.Equal(t, "https://app.example/", claims.ClientID)
	assert.Equal(t, "create update", claims.Scope)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())

	other, err := NewAccessToken("s3cret", "https://me.example/", "https://app.example/", "create update", exp)
	require.NoError(t, err)
	assert.NotEqual(t, tok.Token, other.Token)
}

func TestParseAccessTokenRejects(t *testing.T) {
	good, err := NewAccessToken("s3cret", "https://me.example/", "c", "create", time.Time{})
	require.NoError(t, err)

	expired, err := NewAccessToken("s3cret", "https://me.example/", "c", "create", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"me": "https://me.example/"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"wrong secret": good.Token,
		"expired":      expired.Token,
		"garbage":      "not.a.token",
		"alg none":     noneAlg,
	} {
		secret := "s3cret"
		if name == "wrong secret" {
			secret = "other"
		}
		_, err := ParseAccessToken(secret, raw)
		assert.ErrorIs(t, err, ErrTokenInvalid, name)
	}
}

func TestCodes(t *testing.T) {
	a, err := NewCode()
	require.NoError(t, err)
	b, err := NewCode()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, HashCode(a), HashCode(a))
	assert.NotEqual(t, a, HashCode(a))
	assert.Len(t, HashCode(a), 64)
}

func TestPasswords(t *testing.T) {
	h, err := HashPassword("hunter2", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, "hunter2"))
	assert.False(t, VerifyPassword(h, "hunter3"))
	assert.False(t, VerifyPassword("", ""))
}
