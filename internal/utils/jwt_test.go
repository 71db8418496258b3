package utils

import (
	"testing"
	"time"

	"solarchat/internal/config"
	"solarchat/internal/models"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityTokenRoundTrip(t *testing.T) {
	token, err := GenerateIdentityToken("u1", "Alice", models.RoleUser)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, err := ParseIdentityToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.ID)
	assert.Equal(t, "Alice", identity.Name)
	assert.Equal(t, models.RoleUser, identity.Role)
}

func TestParseIdentityTokenRejectsGarbage(t *testing.T) {
	_, err := ParseIdentityToken("not.a.token")
	assert.Error(t, err)
}

func TestParseIdentityTokenRejectsWrongSecret(t *testing.T) {
	claims := IdentityClaims{
		UserID: "u1",
		Name:   "Alice",
		Role:   models.RoleUser,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	_, err = ParseIdentityToken(signed)
	assert.Error(t, err)
}

func TestParseIdentityTokenRejectsExpired(t *testing.T) {
	claims := IdentityClaims{
		UserID: "u1",
		Name:   "Alice",
		Role:   models.RoleUser,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(-time.Hour).Unix(),
			IssuedAt:  time.Now().Add(-2 * time.Hour).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secretForTest(t))
	require.NoError(t, err)

	_, err = ParseIdentityToken(signed)
	assert.Error(t, err)
}

func TestParseIdentityTokenRejectsMalformedClaim(t *testing.T) {
	claims := IdentityClaims{
		UserID: "u1",
		Name:   "Alice",
		Role:   "superuser",
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secretForTest(t))
	require.NoError(t, err)

	_, err = ParseIdentityToken(signed)
	assert.Error(t, err)
}

// secretForTest signs with the same secret the parser loads, so only the
// claim contents differ from a legitimately issued token.
func secretForTest(t *testing.T) []byte {
	t.Helper()

	secret := config.Load().JWT.Secret
	require.NotEmpty(t, secret)
	return []byte(secret)
}
