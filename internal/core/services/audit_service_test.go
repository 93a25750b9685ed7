package services

import (
	"context"
	"testing"
	"time"

	"easymoney-loans/internal/adapters/persistence/models"
	"easymoney-loans/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuditEntry(actor domain.Actor, entityID string) AuditEntry {
	return AuditEntry{
		EntityType: "loan",
		EntityID:   entityID,
		Action:     "create",
		After:      map[string]any{"principal": 1000.0},
		Actor:      actor,
	}
}

func TestAuditService_Append(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "Sipho Dlamini", domain.RoleAdmin)
	ctx := context.Background()

	t.Run("FirstEntryChainsOnNothing", func(t *testing.T) {
		entry, err := env.auditService.Append(ctx, testAuditEntry(actor, "loan-1"))
		require.NoError(t, err)
		assert.NotEmpty(t, entry.ID)
		assert.Len(t, entry.IntegrityHash, 64)

		// The genesis hash covers the entry content alone
		recomputed, err := computeEntryHash(entry, genesisHash)
		require.NoError(t, err)
		assert.Equal(t, entry.IntegrityHash, recomputed)
	})

	t.Run("SecondEntryChainsOnFirst", func(t *testing.T) {
		first, err := env.auditRepo.GetLatest(ctx)
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := env.auditService.Append(ctx, testAuditEntry(actor, "loan-2"))
		require.NoError(t, err)

		recomputed, err := computeEntryHash(second, first.IntegrityHash)
		require.NoError(t, err)
		assert.Equal(t, second.IntegrityHash, recomputed)
		assert.NotEqual(t, first.IntegrityHash, second.IntegrityHash)
	})
}

func TestAuditService_LedgerOrdering(t *testing.T) {
	t.Run("SameSecondFractionsOrderLexicographically", func(t *testing.T) {
		// .99 and .993 within one second: RFC3339Nano would trim the
		// first to "…05.99Z", which sorts after "…05.993Z" as text.
		// The fixed-width format keeps text order equal to time order.
		base := time.Date(2026, 3, 1, 8, 30, 5, 0, time.UTC)
		first := base.Add(990 * time.Millisecond).Format(ledgerTimeFormat)
		second := base.Add(993 * time.Millisecond).Format(ledgerTimeFormat)
		assert.Equal(t, "2026-03-01T08:30:05.990000000Z", first)
		assert.Less(t, first, second)
	})

	t.Run("RapidAppendsKeepTheHeadStrictlyNewest", func(t *testing.T) {
		env := newTestEnv(t)
		actor := env.seedUser(t, "Sipho Dlamini", domain.RoleAdmin)
		ctx := context.Background()

		var last *models.AuditLog
		prevCreatedAt := ""
		for i := 0; i < 10; i++ {
			entry, err := env.auditService.Append(ctx, testAuditEntry(actor, "loan-1"))
			require.NoError(t, err)
			assert.Len(t, entry.CreatedAt, len("2026-03-01T08:30:05.990000000Z"))
			assert.Greater(t, entry.CreatedAt, prevCreatedAt)
			prevCreatedAt = entry.CreatedAt
			last = entry
		}

		head, err := env.auditRepo.GetLatest(ctx)
		require.NoError(t, err)
		require.NotNil(t, head)
		assert.Equal(t, last.ID, head.ID)

		result, err := env.auditService.Verify(ctx)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Equal(t, 10, result.EntriesTotal)
	})
}

func TestAuditService_Verify(t *testing.T) {
	t.Run("EmptyLedgerIsValid", func(t *testing.T) {
		env := newTestEnv(t)
		result, err := env.auditService.Verify(context.Background())
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Equal(t, 0, result.EntriesTotal)
		assert.Empty(t, result.Mismatches)
	})

	t.Run("IntactChainIsValid", func(t *testing.T) {
		env := newTestEnv(t)
		actor := env.seedUser(t, "Sipho Dlamini", domain.RoleAdmin)
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			_, err := env.auditService.Append(ctx, testAuditEntry(actor, "loan-1"))
			require.NoError(t, err)
		}

		result, err := env.auditService.Verify(ctx)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Equal(t, 5, result.EntriesTotal)
		assert.Empty(t, result.Mismatches)
	})

	t.Run("TamperedSnapshotIsDetected", func(t *testing.T) {
		env := newTestEnv(t)
		actor := env.seedUser(t, "Sipho Dlamini", domain.RoleAdmin)
		ctx := context.Background()

		var entries []*models.AuditLog
		for i := 0; i < 3; i++ {
			entry, err := env.auditService.Append(ctx, testAuditEntry(actor, "loan-1"))
			require.NoError(t, err)
			entries = append(entries, entry)
		}

		// Rewrite the middle entry's snapshot behind the service's back
		forged := `{"principal":9999.0}`
		err := env.db.Model(&models.AuditLog{}).
			Where("id = ?", entries[1].ID).
			Update("after_json", forged).Error
		require.NoError(t, err)

		result, err := env.auditService.Verify(ctx)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		require.Len(t, result.Mismatches, 1)
		assert.Equal(t, entries[1].ID, result.Mismatches[0].EntryID)
		assert.Equal(t, 1, result.Mismatches[0].Position)
		assert.NotEqual(t, result.Mismatches[0].StoredHash, result.Mismatches[0].ComputedHash)
	})

	t.Run("MismatchReportCapsAtFive", func(t *testing.T) {
		env := newTestEnv(t)
		actor := env.seedUser(t, "Sipho Dlamini", domain.RoleAdmin)
		ctx := context.Background()
		for i := 0; i < 8; i++ {
			_, err := env.auditService.Append(ctx, testAuditEntry(actor, "loan-1"))
			require.NoError(t, err)
		}

		err := env.db.Model(&models.AuditLog{}).
			Where("1 = 1").
			Update("integrity_hash", "deadbeef").Error
		require.NoError(t, err)

		result, err := env.auditService.Verify(ctx)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, 8, result.EntriesTotal)
		assert.Len(t, result.Mismatches, 5)
	})
}
