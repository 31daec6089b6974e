package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var verifierSecret = []byte("verifier-test-secret")

func mintToken(t *testing.T, claims jwt.MapClaims, secret []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestAuthenticateValidToken(t *testing.T) {
	v := NewVerifier(verifierSecret)
	token := mintToken(t, jwt.MapClaims{
		"user_id": 42,
		"role":    "counselor",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}, verifierSecret)

	identity, err := v.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 42, Role: RoleCounselor}, identity)
}

func TestAuthenticateMissingToken(t *testing.T) {
	v := NewVerifier(verifierSecret)

	_, err := v.Authenticate("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	v := NewVerifier(verifierSecret)
	token := mintToken(t, jwt.MapClaims{
		"user_id": 42,
		"role":    "patient",
		"exp":     time.Now().Add(-time.Minute).Unix(),
	}, verifierSecret)

	_, err := v.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	v := NewVerifier(verifierSecret)
	token := mintToken(t, jwt.MapClaims{
		"user_id": 42,
		"role":    "patient",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}, []byte("some-other-secret"))

	_, err := v.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateRejectsUnknownRole(t *testing.T) {
	v := NewVerifier(verifierSecret)
	token := mintToken(t, jwt.MapClaims{
		"user_id": 42,
		"role":    "janitor",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}, verifierSecret)

	_, err := v.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateRejectsMissingUserID(t *testing.T) {
	v := NewVerifier(verifierSecret)
	token := mintToken(t, jwt.MapClaims{
		"role": "patient",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}, verifierSecret)

	_, err := v.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
