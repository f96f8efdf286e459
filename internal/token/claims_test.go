package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, userID, email string, expiresAt time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"iat":     time.Now().Unix(),
		"exp":     expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestParse(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute)
	raw := signedToken(t, "user-42", "student@testflow.app", exp)

	claims, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "student@testflow.app", claims.Email)
	assert.WithinDuration(t, exp, claims.ExpiresAt, time.Second)
	assert.False(t, claims.IsExpired())
}

func TestParseSubjectFallback(t *testing.T) {
	claims := jwt.MapClaims{
		"sub": "user-7",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-7", parsed.UserID)
	assert.Empty(t, parsed.Email)
}

func TestParseMalformed(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"one segment", "justonesegment"},
		{"two segments", "header.payload"},
		{"bad base64", "a.!!!notbase64!!!.c"},
		{"bad json payload", "a.bm90LWpzb24.c"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := Parse(tc.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestExpired(t *testing.T) {
	future := signedToken(t, "u", "u@example.com", time.Now().Add(time.Hour))
	past := signedToken(t, "u", "u@example.com", time.Now().Add(-time.Hour))

	assert.False(t, Expired(future))
	assert.True(t, Expired(past))
	assert.True(t, Expired(""))
	assert.True(t, Expired("not.a.token"))
}

func TestExpiredWithoutExpiryClaim(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	assert.True(t, Expired(raw))
}

func TestPairAuthenticated(t *testing.T) {
	valid := Pair{AccessToken: signedToken(t, "u", "u@example.com", time.Now().Add(time.Hour))}
	expired := Pair{AccessToken: signedToken(t, "u", "u@example.com", time.Now().Add(-time.Hour))}

	assert.True(t, valid.Authenticated())
	assert.False(t, expired.Authenticated())
	assert.False(t, Pair{}.Authenticated())
}
