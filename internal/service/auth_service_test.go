package service

import (
	"testing"
	"time"

	"ledgerpay/config"
	"ledgerpay/internal/auth"
	"ledgerpay/internal/domain"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestOperatorLogin(t *testing.T) {
	db := newTestDB(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	adminEmail, userEmail := "ops@example.com", "user@example.com"
	admin := &models.User{Username: "ops", Email: &adminEmail, PasswordHash: string(hash), Role: domain.RoleAdmin}
	plain := &models.User{Username: "user", Email: &userEmail, PasswordHash: string(hash), Role: domain.RoleUser}
	require.NoError(t, db.Create(admin).Error)
	require.NoError(t, db.Create(plain).Error)

	jwtCfg := &config.JWTConfig{AccessSecret: "test", AccessExpiry: time.Hour, Issuer: "ledgerpay"}
	svc := NewAuthService(jwtCfg, repository.NewUserRepository(db))

	u, token, err := svc.OperatorLogin(adminEmail, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, u.ID)
	claims, err := auth.ParseAccessToken(jwtCfg, token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.UserID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	_, _, err = svc.OperatorLogin(adminEmail, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCreds)
	_, _, err = svc.OperatorLogin("nobody@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCreds)
	_, _, err = svc.OperatorLogin(userEmail, "s3cret")
	assert.ErrorIs(t, err, ErrNotOperator)

	token, err = svc.IssueToken(plain.ID)
	require.NoError(t, err)
	claims, err = auth.ParseAccessToken(jwtCfg, token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, claims.Role)
}
