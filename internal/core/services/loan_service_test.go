package services

import (
	"context"
	"testing"
	"time"

	"easymoney-loans/internal/adapters/persistence/models"
	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/domain"
	"easymoney-loans/internal/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanService_Create(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)
	ctx := context.Background()
	customer := env.seedCustomer(t, actor, validIDNumber)

	t.Run("Success", func(t *testing.T) {
		loanDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		loan, warning, err := env.loanService.Create(ctx, CreateLoanInput{
			CustomerID:        customer.ID,
			LoanDate:          loanDate,
			PrincipalAmount:   1000,
			RepaymentPlanCode: domain.PlanFortnightly,
		}, actor)
		require.NoError(t, err)
		assert.Empty(t, warning)

		assert.Equal(t, 1412.00, loan.TotalRepayable)
		assert.Equal(t, 706.00, loan.InstallmentAmount)
		assert.Equal(t, 1412.00, loan.OutstandingBalance)
		assert.Equal(t, string(domain.LoanOpen), loan.Status)
		assert.True(t, loan.FieldsLocked)
		assert.Equal(t, "Thandi Nkosi", loan.CustomerName)
		assert.Equal(t, "Lerato Mokoena", loan.CreatedByName)

		require.Len(t, loan.Payments, 2)
		assert.Equal(t, loanDate.AddDate(0, 0, 14), loan.Payments[0].DueDate)
		assert.Equal(t, loanDate.AddDate(0, 0, 28), loan.Payments[1].DueDate)
		assert.False(t, loan.Payments[0].IsPaid)
	})

	t.Run("PrincipalBelowMinimum", func(t *testing.T) {
		_, _, err := env.loanService.Create(ctx, CreateLoanInput{
			CustomerID:        customer.ID,
			PrincipalAmount:   350,
			RepaymentPlanCode: domain.PlanFortnightly,
		}, actor)
		assert.ErrorIs(t, err, ErrPrincipalOutOfBounds)
	})

	t.Run("PrincipalAboveMaximum", func(t *testing.T) {
		_, _, err := env.loanService.Create(ctx, CreateLoanInput{
			CustomerID:        customer.ID,
			PrincipalAmount:   8001,
			RepaymentPlanCode: domain.PlanFortnightly,
		}, actor)
		assert.ErrorIs(t, err, ErrPrincipalOutOfBounds)
	})

	t.Run("UnknownCustomer", func(t *testing.T) {
		_, _, err := env.loanService.Create(ctx, CreateLoanInput{
			CustomerID:        "no-such-customer",
			PrincipalAmount:   1000,
			RepaymentPlanCode: domain.PlanFortnightly,
		}, actor)
		assert.ErrorIs(t, err, ErrCustomerNotFound)
	})
}

func TestLoanService_Override(t *testing.T) {
	env := newTestEnv(t)
	employee := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)
	manager := env.seedUser(t, "Pieter van Wyk", domain.RoleManager)
	ctx := context.Background()
	customer := env.seedCustomer(t, employee, validIDNumber)

	loan, _, err := env.loanService.Create(ctx, CreateLoanInput{
		CustomerID:        customer.ID,
		PrincipalAmount:   1000,
		RepaymentPlanCode: domain.PlanFortnightly,
	}, employee)
	require.NoError(t, err)

	t.Run("EmployeeForbidden", func(t *testing.T) {
		_, err := env.loanService.Override(ctx, OverrideFieldInput{
			LoanID:    loan.ID,
			FieldName: "principal_amount",
			NewValue:  2000.0,
			Reason:    "captured wrong amount",
		}, employee)
		assert.ErrorIs(t, err, ErrInsufficientRole)
	})

	t.Run("ShortReasonRejectedWithoutSideEffects", func(t *testing.T) {
		auditBefore := env.auditCount(t)
		_, err := env.loanService.Override(ctx, OverrideFieldInput{
			LoanID:    loan.ID,
			FieldName: "principal_amount",
			NewValue:  2000.0,
			Reason:    "oops",
		}, manager)
		assert.ErrorIs(t, err, ErrReasonTooShort)

		unchanged, err := env.loanService.GetByID(ctx, loan.ID, manager)
		require.NoError(t, err)
		assert.Equal(t, 1000.0, unchanged.PrincipalAmount)
		assert.Equal(t, auditBefore, env.auditCount(t))
	})

	t.Run("NonOverridableField", func(t *testing.T) {
		_, err := env.loanService.Override(ctx, OverrideFieldInput{
			LoanID:    loan.ID,
			FieldName: "total_repayable",
			NewValue:  50.0,
			Reason:    "trying to discount the loan",
		}, manager)
		assert.ErrorIs(t, err, ErrFieldNotOverridable)
	})

	t.Run("PrincipalOverridePreservesPaidInstallments", func(t *testing.T) {
		result, _, err := env.paymentService.MarkPaid(ctx, loan.ID, 1, employee)
		require.NoError(t, err)
		assert.Equal(t, 706.00, result.NewBalance)

		_, err = env.loanService.Override(ctx, OverrideFieldInput{
			LoanID:    loan.ID,
			FieldName: "principal_amount",
			NewValue:  2000.0,
			Reason:    "captured wrong amount",
		}, manager)
		require.NoError(t, err)

		// New total 2000*1.40+12 = 2812; 706 already paid stays netted out
		updated, err := env.loanService.GetByID(ctx, loan.ID, manager)
		require.NoError(t, err)
		assert.Equal(t, 2000.0, updated.PrincipalAmount)
		assert.Equal(t, 2812.00, updated.TotalRepayable)
		assert.Equal(t, 2106.00, updated.OutstandingBalance)
		assert.Equal(t, string(domain.LoanOpen), updated.Status)
	})

	t.Run("LoanDateOverride", func(t *testing.T) {
		_, err := env.loanService.Override(ctx, OverrideFieldInput{
			LoanID:    loan.ID,
			FieldName: "loan_date",
			NewValue:  "2026-02-15",
			Reason:    "agreement was signed earlier",
		}, manager)
		require.NoError(t, err)

		updated, err := env.loanService.GetByID(ctx, loan.ID, manager)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), updated.LoanDate.UTC())
	})

	t.Run("OverrideIsAudited", func(t *testing.T) {
		entries, err := env.auditService.List(ctx, repositories.ListFilter{EntityType: "loan", EntityID: loan.ID})
		require.NoError(t, err)
		var found bool
		for _, entry := range entries {
			if entry.Action == "field_override" {
				found = true
				require.NotNil(t, entry.Reason)
			}
		}
		assert.True(t, found)
	})
}

func TestLoanService_DuplicateCustomerFlag(t *testing.T) {
	env := newTestEnv(t)
	employee := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)
	admin := env.seedUser(t, "Sipho Dlamini", domain.RoleAdmin)
	ctx := context.Background()
	customer := env.seedCustomer(t, employee, validIDNumber)

	first, _, err := env.loanService.Create(ctx, CreateLoanInput{
		CustomerID:        customer.ID,
		PrincipalAmount:   1000,
		RepaymentPlanCode: domain.PlanFortnightly,
	}, employee)
	require.NoError(t, err)

	t.Run("SingleLoanNotFlagged", func(t *testing.T) {
		assert.NotContains(t, first.FraudFlags, domain.FlagDuplicateCustomer)
	})

	second, _, err := env.loanService.Create(ctx, CreateLoanInput{
		CustomerID:        customer.ID,
		PrincipalAmount:   500,
		RepaymentPlanCode: domain.PlanWeekly,
	}, employee)
	require.NoError(t, err)

	t.Run("SecondLoanFlagsBoth", func(t *testing.T) {
		assert.Contains(t, second.FraudFlags, domain.FlagDuplicateCustomer)

		loans, _, err := env.loanService.List(ctx, "", &pagination.Params{Page: 1, Limit: 50}, employee)
		require.NoError(t, err)
		require.Len(t, loans, 2)
		for _, loan := range loans {
			assert.Contains(t, loan.FraudFlags, domain.FlagDuplicateCustomer)
		}
	})

	t.Run("ArchivingOneClearsTheFlag", func(t *testing.T) {
		_, err := env.archiveService.Archive(ctx, "loan", second.ID, "duplicate capture in error", admin)
		require.NoError(t, err)

		remaining, err := env.loanService.GetByID(ctx, first.ID, employee)
		require.NoError(t, err)
		assert.NotContains(t, remaining.FraudFlags, domain.FlagDuplicateCustomer)
	})
}

func TestLoanService_ActiveCountFailureSurfaces(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)
	ctx := context.Background()
	customer := env.seedCustomer(t, actor, validIDNumber)

	created, _, err := env.loanService.Create(ctx, CreateLoanInput{
		CustomerID:        customer.ID,
		LoanDate:          time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PrincipalAmount:   1000,
		RepaymentPlanCode: domain.PlanFortnightly,
	}, actor)
	require.NoError(t, err)

	loan, err := env.loanRepo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	payments, err := env.paymentRepo.ListByLoan(ctx, loan.ID)
	require.NoError(t, err)
	cust, err := env.customerRepo.GetByID(ctx, customer.ID)
	require.NoError(t, err)

	// An infrastructure failure in the active-loan count must surface
	// instead of silently degrading the duplicate-customer signal
	require.NoError(t, env.db.Migrator().DropTable(&models.Loan{}))

	_, err = env.loanService.enrich(ctx, loan, payments, cust, actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count active loans")
}
