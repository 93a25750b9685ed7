package services

import (
	"context"
	"testing"

	"easymoney-loans/internal/core/domain"
	"easymoney-loans/internal/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveService_Archive(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "Sipho Dlamini", domain.RoleAdmin)
	manager := env.seedUser(t, "Pieter van Wyk", domain.RoleManager)
	ctx := context.Background()
	customer := env.seedCustomer(t, admin, validIDNumber)

	loan, _, err := env.loanService.Create(ctx, CreateLoanInput{
		CustomerID:        customer.ID,
		PrincipalAmount:   1000,
		RepaymentPlanCode: domain.PlanFortnightly,
	}, admin)
	require.NoError(t, err)

	t.Run("ManagerForbidden", func(t *testing.T) {
		_, err := env.archiveService.Archive(ctx, "customer", customer.ID, "entered in error by staff", manager)
		assert.ErrorIs(t, err, ErrInsufficientRole)
	})

	t.Run("ShortReasonRejected", func(t *testing.T) {
		_, err := env.archiveService.Archive(ctx, "customer", customer.ID, "typo", admin)
		assert.ErrorIs(t, err, ErrReasonTooShort)
	})

	t.Run("UnknownEntityType", func(t *testing.T) {
		_, err := env.archiveService.Archive(ctx, "payment", loan.ID, "entered in error by staff", admin)
		assert.ErrorIs(t, err, ErrUnknownEntityType)
	})

	t.Run("ArchiveCustomerDoesNotCascade", func(t *testing.T) {
		_, err := env.archiveService.Archive(ctx, "customer", customer.ID, "entered in error by staff", admin)
		require.NoError(t, err)

		// Archived customers drop off the list but stay fetchable
		customers, total, err := env.customerService.List(ctx, &pagination.Params{Page: 1, Limit: 50}, admin)
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, customers)

		archived, err := env.customerService.GetByID(ctx, customer.ID, admin)
		require.NoError(t, err)
		assert.NotNil(t, archived.ArchivedAt)

		// The customer's loan is untouched
		untouched, err := env.loanService.GetByID(ctx, loan.ID, admin)
		require.NoError(t, err)
		assert.Nil(t, untouched.ArchivedAt)
	})

	t.Run("DoubleArchiveRejected", func(t *testing.T) {
		_, err := env.archiveService.Archive(ctx, "customer", customer.ID, "entered in error by staff", admin)
		assert.ErrorIs(t, err, ErrAlreadyArchived)
	})

	t.Run("ArchiveLoan", func(t *testing.T) {
		_, err := env.archiveService.Archive(ctx, "loan", loan.ID, "duplicate capture in error", admin)
		require.NoError(t, err)

		loans, total, err := env.loanService.List(ctx, "", &pagination.Params{Page: 1, Limit: 50}, admin)
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, loans)
	})
}
