package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_AccessToken(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)

	token, err := tm.GenerateAccessToken(7, "alice", []string{RoleAdmin})
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int32(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.True(t, claims.HasRole(RoleAdmin))
	assert.False(t, claims.HasRole("moderator"))
}

func TestTokenManager_ServiceToken(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)

	token, err := tm.GenerateServiceToken("registration")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeService, claims.Type)
	assert.Equal(t, int32(0), claims.UserID)
	assert.Equal(t, "registration", claims.Subject)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour).(*tokenManager)
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return issued }

	token, err := tm.GenerateAccessToken(7, "alice", nil)
	require.NoError(t, err)

	tm.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = tm.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenManager_Invalid(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)

	t.Run("Garbage", func(t *testing.T) {
		_, err := tm.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		other := NewTokenManager("ffffffffffffffffffffffffffffffff", time.Hour)
		token, err := other.GenerateAccessToken(7, "alice", nil)
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Wrong audience", func(t *testing.T) {
		claims := UserClaims{
			UserID: 7,
			Type:   TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				Audience:  jwt.ClaimStrings{"somewhere-else"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
