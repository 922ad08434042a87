package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndParseAccess(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 30*time.Minute)
	user := &User{ID: 42, Email: "alice@example.com"}

	token, err := issuer.MintAccess(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "access", claims.Type)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, "taskgate", claims.Issuer)
}

func TestParseAccessExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)
	token, err := issuer.MintAccess(&User{ID: 1, Email: "a@b.c"})
	require.NoError(t, err)

	_, err = issuer.ParseAccess(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseAccessWrongSecret(t *testing.T) {
	minter := NewTokenIssuer("one-secret", 30*time.Minute)
	parser := NewTokenIssuer("other-secret", 30*time.Minute)

	token, err := minter.MintAccess(&User{ID: 1, Email: "a@b.c"})
	require.NoError(t, err)

	_, err = parser.ParseAccess(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessRejectsNonAccessType(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 30*time.Minute)

	claims := Claims{
		UserID: 1,
		Email:  "a@b.c",
		Type:   "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = issuer.ParseAccess(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessRejectsUnsignedAlg(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 30*time.Minute)

	claims := Claims{
		UserID: 1,
		Type:   "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.ParseAccess(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewRefreshTokenValue(t *testing.T) {
	first, err := NewRefreshTokenValue()
	require.NoError(t, err)
	second, err := NewRefreshTokenValue()
	require.NoError(t, err)

	// 32 random bytes, base64 without padding.
	assert.Len(t, first, 43)
	assert.NotEqual(t, first, second)
	assert.NotContains(t, first, "=")
}
