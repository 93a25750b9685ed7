package services

import (
	"context"
	"testing"

	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSettingsService(env *testEnv) *SettingsService {
	return NewSettingsService(repositories.NewSettingsRepository(env.db), env.userRepo, env.auditService, NewDirectoryService())
}

func TestSettingsService_MasterPassword(t *testing.T) {
	env := newTestEnv(t)
	settings := newSettingsService(env)
	ctx := context.Background()

	t.Run("NotSetInitially", func(t *testing.T) {
		set, err := settings.MasterPasswordSet(ctx)
		require.NoError(t, err)
		assert.False(t, set)

		err = settings.VerifyMasterPassword(ctx, "whatever-pass")
		assert.ErrorIs(t, err, ErrMasterPasswordNotSet)
	})

	t.Run("TooShortRejected", func(t *testing.T) {
		_, err := settings.SetupMasterPassword(ctx, "short")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("SetupSeedsDefaultAdmin", func(t *testing.T) {
		admin, err := settings.SetupMasterPassword(ctx, "unlock-the-safe")
		require.NoError(t, err)
		assert.Equal(t, "admin", admin.Username)
		assert.Equal(t, string(domain.RoleAdmin), admin.Role)

		set, err := settings.MasterPasswordSet(ctx)
		require.NoError(t, err)
		assert.True(t, set)
	})

	t.Run("SetupRunsOnce", func(t *testing.T) {
		_, err := settings.SetupMasterPassword(ctx, "another-password")
		assert.ErrorIs(t, err, ErrMasterPasswordSet)
	})

	t.Run("Verify", func(t *testing.T) {
		assert.NoError(t, settings.VerifyMasterPassword(ctx, "unlock-the-safe"))
		assert.ErrorIs(t, settings.VerifyMasterPassword(ctx, "wrong-password"), ErrInvalidMasterPassword)
	})
}

func TestSettingsService_Update(t *testing.T) {
	env := newTestEnv(t)
	settings := newSettingsService(env)
	admin := env.seedUser(t, "Sipho Dlamini", domain.RoleAdmin)
	employee := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)
	ctx := context.Background()

	t.Run("NonAdminForbidden", func(t *testing.T) {
		_, err := settings.Update(ctx, map[string]any{"branch_name": "Polokwane"}, employee)
		assert.ErrorIs(t, err, ErrInsufficientRole)
	})

	t.Run("RoundTrips", func(t *testing.T) {
		_, err := settings.Update(ctx, map[string]any{
			"branch_name":        "Polokwane",
			"export_folder_path": "/srv/exports",
		}, admin)
		require.NoError(t, err)

		all, err := settings.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Polokwane", all["branch_name"])
		assert.Equal(t, "/srv/exports", all["export_folder_path"])
	})

	t.Run("MasterPasswordHashNotReachable", func(t *testing.T) {
		_, err := settings.Update(ctx, map[string]any{"master_password_hash": "forged"}, admin)
		require.NoError(t, err)

		set, err := settings.MasterPasswordSet(ctx)
		require.NoError(t, err)
		assert.False(t, set)
	})
}

func TestSettingsService_ADConfig(t *testing.T) {
	env := newTestEnv(t)
	settings := newSettingsService(env)
	admin := env.seedUser(t, "Sipho Dlamini", domain.RoleAdmin)
	ctx := context.Background()

	t.Run("ZeroValuedWhenUnset", func(t *testing.T) {
		cfg, err := settings.GetADConfig(ctx)
		require.NoError(t, err)
		assert.False(t, cfg.Enabled)
		assert.Empty(t, cfg.ServerURL)
	})

	t.Run("DefaultsFilledOnSave", func(t *testing.T) {
		_, err := settings.UpdateADConfig(ctx, ADConfig{
			Enabled:   true,
			ServerURL: "ldap://dc01.easymoney.local:389",
			Domain:    "easymoney.local",
			BaseDN:    "DC=easymoney,DC=local",
		}, admin)
		require.NoError(t, err)

		cfg, err := settings.GetADConfig(ctx)
		require.NoError(t, err)
		assert.True(t, cfg.Enabled)
		assert.Equal(t, string(domain.RoleEmployee), cfg.DefaultRole)
		assert.Equal(t, "Head Office", cfg.DefaultBranch)
	})
}
