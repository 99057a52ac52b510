package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signTestToken(t *testing.T, secret string, claims AccessTokenClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokenVerifier_ValidToken(t *testing.T) {
	v := NewTokenVerifier("shared-secret")

	tokenString := signTestToken(t, "shared-secret", AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "jane.doe@x.edu",
		Role:  "authenticated",
	})

	claims, err := v.Verify(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "jane.doe@x.edu", claims.Email)
}

func TestTokenVerifier_WrongSecret(t *testing.T) {
	v := NewTokenVerifier("shared-secret")

	tokenString := signTestToken(t, "other-secret", AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := v.Verify(tokenString)
	require.Error(t, err)
	assert.True(t, IsInvalidToken(err))
}

func TestTokenVerifier_ExpiredToken(t *testing.T) {
	v := NewTokenVerifier("shared-secret")

	tokenString := signTestToken(t, "shared-secret", AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := v.Verify(tokenString)
	require.Error(t, err)
	assert.True(t, IsInvalidToken(err))
}

func TestTokenVerifier_MissingSubject(t *testing.T) {
	v := NewTokenVerifier("shared-secret")

	tokenString := signTestToken(t, "shared-secret", AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := v.Verify(tokenString)
	require.Error(t, err)
}

func TestIsInvalidToken_NonAuthError(t *testing.T) {
	assert.False(t, IsInvalidToken(assert.AnError))
	assert.False(t, IsInvalidToken(nil))
}

func TestIsInvalidToken_MessageHeuristics(t *testing.T) {
	err := &AuthError{Message: "Invalid Refresh Token: Token Not Found", Status: 400}
	assert.True(t, IsInvalidToken(err))

	err = &AuthError{Message: "Email not confirmed", Status: 400, Code: "email_not_confirmed"}
	assert.False(t, IsInvalidToken(err))
}
