package authUtils

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := GenerateAndSetToken("secret", "64b7f0c2a1b2c3d4e5f60718", "employee", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("secret", tok)
	require.NoError(t, err)
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60718", claims.UserID)
	assert.Equal(t, "employee", claims.Role)
}

func TestParseToken_Rejects(t *testing.T) {
	tok, err := GenerateAndSetToken("secret", "u1", "citizen", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken("other", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateAndSetToken("secret", "u1", "citizen", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u1"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseToken("secret", noRole)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("secret", "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = GenerateAndSetToken("", "u1", "citizen", time.Hour)
	assert.Error(t, err)
}
