package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("test-signing-key")

func TestGenerateAndValidate(t *testing.T) {
	token, err := GenerateToken(testKey, "3")
	require.NoError(t, err)

	claims, err := ValidateToken(testKey, token)
	require.NoError(t, err)
	assert.Equal(t, "3", claims.UserID)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestGenerateToken_EmptyKey(t *testing.T) {
	_, err := GenerateToken(nil, "3")
	assert.Error(t, err)
}

func TestValidateToken_Rejects(t *testing.T) {
	good, err := GenerateToken(testKey, "1")
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &CustomClaims{
		UserID: "1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	expiredStr, err := expired.SignedString(testKey)
	require.NoError(t, err)

	noneAlg := jwt.NewWithClaims(jwt.SigningMethodNone, &CustomClaims{
		UserID:           "1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer},
	})
	noneStr, err := noneAlg.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		key   []byte
		token string
	}{
		{"wrong key", []byte("other-key"), good},
		{"garbage", testKey, "not.a.token"},
		{"expired", testKey, expiredStr},
		{"none algorithm", testKey, noneStr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(tt.key, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
