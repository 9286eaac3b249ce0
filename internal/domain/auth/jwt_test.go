package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "emkart-identity"

func mintToken(t *testing.T, secret []byte, mutate func(*Claims)) string {
	t.Helper()
	claims := Claims{
		Name:  "Asha",
		Email: "asha@example.com",
		Phone: "+911234567890",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	if mutate != nil {
		mutate(&claims)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestJWTVerifier_Valid(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret, testIssuer)

	id, err := v.Verify(context.Background(), mintToken(t, secret, nil))
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "Asha", id.Name)
	assert.Equal(t, "asha@example.com", id.Email)
}

func TestJWTVerifier_Rejections(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret, testIssuer)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", mintToken(t, []byte("other-secret"), nil)},
		{"expired", mintToken(t, secret, func(c *Claims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		})},
		{"wrong issuer", mintToken(t, secret, func(c *Claims) {
			c.Issuer = "someone-else"
		})},
		{"missing subject", mintToken(t, secret, func(c *Claims) {
			c.Subject = ""
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}
