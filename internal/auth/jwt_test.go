package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatboard/internal/config"
	"chatboard/internal/models"
)

func testJWTService(accessDur, refreshDur time.Duration) *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:          "test-secret-key",
		AccessDuration:  accessDur,
		RefreshDuration: refreshDur,
	})
}

func testUser() *models.User {
	u := &models.User{
		CompanyID: uuid.New(),
		Email:     "maria@example.com",
		Role:      models.RoleAgent,
	}
	u.ID = uuid.New()
	return u
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := testJWTService(15*time.Minute, 24*time.Hour)
	user := testUser()

	pair, err := svc.GenerateTokenPair(user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.CompanyID, claims.CompanyID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, models.RoleAgent, claims.Role)

	refreshClaims, err := svc.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, refreshClaims.UserID)
}

func TestJWTService_TokenTypeMismatch(t *testing.T) {
	svc := testJWTService(15*time.Minute, 24*time.Hour)
	pair, err := svc.GenerateTokenPair(testUser())
	require.NoError(t, err)

	// Refresh token không dùng được làm access token và ngược lại
	_, err = svc.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ExpiredToken(t *testing.T) {
	svc := testJWTService(-1*time.Minute, -1*time.Minute)
	pair, err := svc.GenerateTokenPair(testUser())
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_WrongSecret(t *testing.T) {
	svc := testJWTService(15*time.Minute, 24*time.Hour)
	pair, err := svc.GenerateTokenPair(testUser())
	require.NoError(t, err)

	other := NewJWTService(config.JWTConfig{
		Secret:          "another-secret",
		AccessDuration:  15 * time.Minute,
		RefreshDuration: 24 * time.Hour,
	})
	_, err = other.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_GarbageToken(t *testing.T) {
	svc := testJWTService(15*time.Minute, 24*time.Hour)

	_, err := svc.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
