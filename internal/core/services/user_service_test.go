package services

import (
	"context"
	"testing"

	"easymoney-loans/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Create(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "Sipho Dlamini", domain.RoleAdmin)
	employee := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		user, warning, err := env.userService.Create(ctx, CreateUserInput{
			Username: "nandi.z",
			Password: "s3cret-pass",
			FullName: "Nandi Zulu",
			Role:     "employee",
			Branch:   "Head Office",
		}, admin)
		require.NoError(t, err)
		assert.Empty(t, warning)
		assert.Equal(t, "nandi.z", user.Username)
		assert.True(t, user.IsActive)
		assert.Equal(t, string(domain.AuthLocal), user.AuthMethod)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		_, _, err := env.userService.Create(ctx, CreateUserInput{
			Username: "nandi.z",
			Password: "s3cret-pass",
			FullName: "Someone Else",
			Role:     "employee",
		}, admin)
		assert.ErrorIs(t, err, ErrUsernameExists)
	})

	t.Run("WeakPassword", func(t *testing.T) {
		_, _, err := env.userService.Create(ctx, CreateUserInput{
			Username: "short.pw",
			Password: "short",
			FullName: "Short Password",
			Role:     "employee",
		}, admin)
		assert.ErrorIs(t, err, ErrWeakPassword)
	})

	t.Run("UnknownRole", func(t *testing.T) {
		_, _, err := env.userService.Create(ctx, CreateUserInput{
			Username: "bad.role",
			Password: "s3cret-pass",
			FullName: "Bad Role",
			Role:     "superuser",
		}, admin)
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("NonAdminForbidden", func(t *testing.T) {
		_, _, err := env.userService.Create(ctx, CreateUserInput{
			Username: "sneaky",
			Password: "s3cret-pass",
			FullName: "Sneaky User",
			Role:     "admin",
		}, employee)
		assert.ErrorIs(t, err, ErrInsufficientRole)
	})
}

func TestUserService_SetActive(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "Sipho Dlamini", domain.RoleAdmin)
	other := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)
	ctx := context.Background()

	t.Run("DeactivateAndReactivate", func(t *testing.T) {
		_, err := env.userService.SetActive(ctx, other.ID, false, admin)
		require.NoError(t, err)

		user, err := env.userRepo.GetByID(ctx, other.ID)
		require.NoError(t, err)
		assert.False(t, user.IsActive)

		_, err = env.userService.SetActive(ctx, other.ID, true, admin)
		require.NoError(t, err)
	})

	t.Run("SelfDeactivationBlocked", func(t *testing.T) {
		_, err := env.userService.SetActive(ctx, admin.ID, false, admin)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, err := env.userService.SetActive(ctx, "no-such-user", false, admin)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
