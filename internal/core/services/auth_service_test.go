package services

import (
	"context"
	"encoding/json"
	"testing"

	"easymoney-loans/internal/adapters/persistence/models"
	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/config"
	"easymoney-loans/internal/core/domain"
	"easymoney-loans/internal/pkg/password"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(env *testEnv) *AuthService {
	config.AppConfig = &config.Config{
		JWT: config.JWTConfig{
			Secret:           "test-secret",
			RefreshSecret:    "test-refresh-secret",
			AccessTokenMins:  15,
			RefreshTokenDays: 7,
		},
	}
	return NewAuthService(
		env.userRepo,
		repositories.NewRefreshTokenRepository(env.db),
		newSettingsService(env),
		NewDirectoryService(),
		env.auditService,
	)
}

func (e *testEnv) seedLocalUser(t *testing.T, username, plaintext string, active bool) *models.User {
	t.Helper()
	hash, err := password.Hash(plaintext)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		FullName:     "Lerato Mbeki",
		Role:         string(domain.RoleEmployee),
		Branch:       "Head Office",
		IsActive:     active,
		AuthMethod:   string(domain.AuthLocal),
	}
	require.NoError(t, e.userRepo.Create(context.Background(), user))
	return user
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("LocalSuccess", func(t *testing.T) {
		env := newTestEnv(t)
		auth := newAuthService(env)
		env.seedLocalUser(t, "lerato", "S3nsible-Pass", true)

		before := env.auditCount(t)
		result, err := auth.Login(ctx, LoginInput{Username: "lerato", Password: "S3nsible-Pass"})
		require.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.Equal(t, string(domain.AuthLocal), result.AuthMethod)
		assert.Equal(t, "lerato", result.User.Username)
		assert.Equal(t, before+1, env.auditCount(t))
	})

	t.Run("WrongPassword", func(t *testing.T) {
		env := newTestEnv(t)
		auth := newAuthService(env)
		env.seedLocalUser(t, "lerato", "S3nsible-Pass", true)

		_, err := auth.Login(ctx, LoginInput{Username: "lerato", Password: "guessing"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		env := newTestEnv(t)
		auth := newAuthService(env)

		_, err := auth.Login(ctx, LoginInput{Username: "nobody", Password: "whatever"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("InactiveAccount", func(t *testing.T) {
		env := newTestEnv(t)
		auth := newAuthService(env)
		env.seedLocalUser(t, "lerato", "S3nsible-Pass", false)

		_, err := auth.Login(ctx, LoginInput{Username: "lerato", Password: "S3nsible-Pass"})
		assert.ErrorIs(t, err, ErrAccountDisabled)
	})

	t.Run("DirectoryOnlyUserCannotUseLocalPassword", func(t *testing.T) {
		env := newTestEnv(t)
		auth := newAuthService(env)
		user := &models.User{
			ID:         uuid.New().String(),
			Username:   "dsmith",
			FullName:   "D Smith",
			Role:       string(domain.RoleEmployee),
			Branch:     "Head Office",
			IsActive:   true,
			AuthMethod: string(domain.AuthDirectory),
		}
		require.NoError(t, env.userRepo.Create(ctx, user))

		_, err := auth.Login(ctx, LoginInput{Username: "dsmith", Password: "anything"})
		assert.ErrorIs(t, err, ErrDirectoryOnlyUser)
	})

	t.Run("UnreachableDirectoryFallsBackToLocal", func(t *testing.T) {
		env := newTestEnv(t)
		auth := newAuthService(env)
		env.seedLocalUser(t, "lerato", "S3nsible-Pass", true)

		adConfig, err := json.Marshal(ADConfig{
			Enabled:   true,
			ServerURL: "ldap://127.0.0.1:1",
			Domain:    "EASYMONEY",
		})
		require.NoError(t, err)
		settingsRepo := repositories.NewSettingsRepository(env.db)
		require.NoError(t, settingsRepo.Upsert(ctx, models.SettingADConfig, string(adConfig)))

		result, err := auth.Login(ctx, LoginInput{Username: "lerato", Password: "S3nsible-Pass"})
		require.NoError(t, err)
		assert.Equal(t, string(domain.AuthLocal), result.AuthMethod)
	})
}

func TestAuthService_RefreshRotation(t *testing.T) {
	ctx := context.Background()

	t.Run("RotatesAndRevokesPresentedToken", func(t *testing.T) {
		env := newTestEnv(t)
		auth := newAuthService(env)
		env.seedLocalUser(t, "lerato", "S3nsible-Pass", true)

		first, err := auth.Login(ctx, LoginInput{Username: "lerato", Password: "S3nsible-Pass"})
		require.NoError(t, err)

		second, err := auth.Refresh(ctx, first.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

		// The first token was revoked during rotation
		_, err = auth.Refresh(ctx, first.RefreshToken)
		assert.ErrorIs(t, err, ErrRefreshTokenInvalid)
	})

	t.Run("GarbageTokenRejected", func(t *testing.T) {
		env := newTestEnv(t)
		auth := newAuthService(env)

		_, err := auth.Refresh(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrRefreshTokenInvalid)
	})

	t.Run("LogoutRevokes", func(t *testing.T) {
		env := newTestEnv(t)
		auth := newAuthService(env)
		env.seedLocalUser(t, "lerato", "S3nsible-Pass", true)

		result, err := auth.Login(ctx, LoginInput{Username: "lerato", Password: "S3nsible-Pass"})
		require.NoError(t, err)
		require.NoError(t, auth.Logout(ctx, result.RefreshToken))

		_, err = auth.Refresh(ctx, result.RefreshToken)
		assert.ErrorIs(t, err, ErrRefreshTokenInvalid)
	})
}

func TestAuthService_Me(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	auth := newAuthService(env)
	user := env.seedLocalUser(t, "lerato", "S3nsible-Pass", true)

	profile, err := auth.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "lerato", profile.Username)

	_, err = auth.Me(ctx, uuid.New().String())
	assert.ErrorIs(t, err, ErrUserNotFound)
}
