package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_RoundTrip(t *testing.T) {
	svc := NewService("secret", time.Hour)

	token, err := svc.GenerateAccessToken("scanner-01")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "scanner-01", claims.ClientID)
	assert.Equal(t, "scanner-01", claims.Subject)
}

func TestService_RejectsBadTokens(t *testing.T) {
	svc := NewService("secret", time.Hour)

	expired, err := NewService("secret", -time.Minute).GenerateAccessToken("c")
	require.NoError(t, err)

	otherKey, err := NewService("other", time.Hour).GenerateAccessToken("c")
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ClientID: "c"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":   expired,
		"other key": otherKey,
		"alg none":  unsigned,
		"garbage":   "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.Error(t, err)
		})
	}
}
