package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userOne = "5b9e3c7a-1d2f-4e6a-9b8c-7d6e5f4a3b2c"

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: userOne, Email: "ana@example.test", Role: RoleAdmin}, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	user := claims.User()
	assert.Equal(t, userOne, user.UserID)
	assert.True(t, user.IsAdmin())
}

func TestParseTokenRejects(t *testing.T) {
	valid, err := GenerateToken("secret", Claims{UserID: userOne}, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("secret", Claims{UserID: userOne}, -time.Minute)
	require.NoError(t, err)
	noUser, err := GenerateToken("secret", Claims{}, time.Hour)
	require.NoError(t, err)
	slugUser, err := GenerateToken("secret", Claims{UserID: "u-1"}, time.Hour)
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: userOne}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]struct{ secret, token string }{
		"wrong secret":  {"other", valid},
		"expired":       {"secret", expired},
		"missing user":  {"secret", noUser},
		"non-uuid user": {"secret", slugUser},
		"wrong method":  {"secret", hs512},
		"garbage":       {"secret", "not.a.token"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(tt.secret, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestSubjectFallback(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userOne,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, userOne, claims.UserID)
	assert.Equal(t, RoleUser, claims.User().Role)
}
