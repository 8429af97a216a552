package api

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, key ed25519.PrivateKey, address string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(&jwt.SigningMethodEd25519{}, JWT{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			Issuer:    "vickroy",
			Subject:   address,
			ID:        uuid.NewString(),
			Audience:  []string{"vickroy"},
		},
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestParseAndValidateJWT(t *testing.T) {
	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		signed := signToken(t, key, "0xbidder1", time.Now().Add(time.Hour))

		claims, err := ParseAndValidateJWT(signed, key)
		require.NoError(t, err)
		assert.Equal(t, "0xbidder1", claims.Address)
		assert.Equal(t, "vickroy", claims.Issuer)
	})

	t.Run("expired token", func(t *testing.T) {
		signed := signToken(t, key, "0xbidder1", time.Now().Add(-time.Hour))

		_, err := ParseAndValidateJWT(signed, key)
		assert.Error(t, err)
	})

	t.Run("wrong key", func(t *testing.T) {
		_, otherKey, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		signed := signToken(t, otherKey, "0xbidder1", time.Now().Add(time.Hour))

		_, err = ParseAndValidateJWT(signed, key)
		assert.Error(t, err)
	})

	t.Run("wrong signing method", func(t *testing.T) {
		// 以公鑰位元組作為HMAC金鑰簽出HS256憑證，驗證端必須拒絕
		publicKey := key.Public().(ed25519.PublicKey)
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, JWT{
			Address: "0xbidder1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString([]byte(publicKey))
		require.NoError(t, err)

		_, err = ParseAndValidateJWT(signed, key)
		assert.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := ParseAndValidateJWT("not-a-token", key)
		assert.Error(t, err)
	})
}
