package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackupService(env *testEnv) *BackupService {
	settingsRepo := repositories.NewSettingsRepository(env.db)
	return NewBackupService(env.userRepo, env.customerRepo, env.loanRepo, env.paymentRepo, env.auditRepo, settingsRepo, env.auditService)
}

func TestBackupService_CreateAndRestore(t *testing.T) {
	env := newTestEnv(t)
	backup := newBackupService(env)
	admin := env.seedUser(t, "Sipho Dlamini", domain.RoleAdmin)
	ctx := context.Background()
	dir := t.TempDir()

	customer := env.seedCustomer(t, admin, validIDNumber)
	loan, _, err := env.loanService.Create(ctx, CreateLoanInput{
		CustomerID:        customer.ID,
		PrincipalAmount:   1000,
		RepaymentPlanCode: domain.PlanFortnightly,
	}, admin)
	require.NoError(t, err)

	var backupPath string

	t.Run("CreateDumpsEverything", func(t *testing.T) {
		result, warning, err := backup.Create(ctx, dir, admin)
		require.NoError(t, err)
		assert.Empty(t, warning)
		assert.Equal(t, 1, result.RecordsCount["customers"])
		assert.Equal(t, 1, result.RecordsCount["loans"])
		assert.Equal(t, 2, result.RecordsCount["payments"])
		assert.Equal(t, 1, result.RecordsCount["users"])
		assert.FileExists(t, result.Filepath)

		// No password material in the dump
		raw, err := os.ReadFile(result.Filepath)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "password_hash")
		backupPath = result.Filepath
	})

	t.Run("NoPathConfigured", func(t *testing.T) {
		_, _, err := backup.Create(ctx, "", admin)
		assert.ErrorIs(t, err, ErrBackupPathNotSet)
	})

	t.Run("RestoreReplacesOperationalTables", func(t *testing.T) {
		// Mutate state after the backup, then roll back to it
		_, _, err := env.paymentService.MarkPaid(ctx, loan.ID, 1, admin)
		require.NoError(t, err)

		counts, warning, err := backup.Restore(ctx, backupPath, admin)
		require.NoError(t, err)
		assert.Empty(t, warning)
		assert.Equal(t, 1, counts["customers"])
		assert.Equal(t, 1, counts["loans"])
		assert.Equal(t, 2, counts["payments"])

		restored, err := env.loanService.GetByID(ctx, loan.ID, admin)
		require.NoError(t, err)
		assert.Equal(t, 1412.00, restored.OutstandingBalance)
		assert.False(t, restored.Payments[0].IsPaid)
	})

	t.Run("RestoreKeepsLedger", func(t *testing.T) {
		entries, err := env.auditService.List(ctx, repositories.ListFilter{EntityType: "backup"})
		require.NoError(t, err)
		actions := make([]string, 0, len(entries))
		for _, entry := range entries {
			actions = append(actions, entry.Action)
		}
		assert.Contains(t, actions, "create")
		assert.Contains(t, actions, "restore_started")
		assert.Contains(t, actions, "restore_completed")
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, _, err := backup.Restore(ctx, filepath.Join(dir, "nope.json"), admin)
		assert.ErrorIs(t, err, ErrBackupFileNotFound)
	})

	t.Run("MalformedFile", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{"backup_info":{}}`), 0o644))
		_, _, err := backup.Restore(ctx, bad, admin)
		assert.ErrorIs(t, err, ErrBackupFileMalformed)
	})

	t.Run("NonAdminForbidden", func(t *testing.T) {
		employee := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)
		_, _, err := backup.Create(ctx, dir, employee)
		assert.ErrorIs(t, err, ErrInsufficientRole)
	})
}
