package services

import (
	"context"
	"testing"

	"easymoney-loans/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentService_MarkPaid(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)
	ctx := context.Background()
	customer := env.seedCustomer(t, actor, validIDNumber)

	loan, _, err := env.loanService.Create(ctx, CreateLoanInput{
		CustomerID:        customer.ID,
		PrincipalAmount:   1000,
		RepaymentPlanCode: domain.PlanFortnightly,
	}, actor)
	require.NoError(t, err)

	t.Run("FirstInstallment", func(t *testing.T) {
		result, warning, err := env.paymentService.MarkPaid(ctx, loan.ID, 1, actor)
		require.NoError(t, err)
		assert.Empty(t, warning)
		assert.Equal(t, 706.00, result.NewBalance)
		assert.Equal(t, string(domain.LoanOpen), result.LoanStatus)
	})

	t.Run("MarkingPaidIsTerminal", func(t *testing.T) {
		_, _, err := env.paymentService.MarkPaid(ctx, loan.ID, 1, actor)
		assert.ErrorIs(t, err, ErrPaymentAlreadyPaid)
	})

	t.Run("LastInstallmentClosesLoan", func(t *testing.T) {
		result, _, err := env.paymentService.MarkPaid(ctx, loan.ID, 2, actor)
		require.NoError(t, err)
		assert.Equal(t, 0.00, result.NewBalance)
		assert.Equal(t, string(domain.LoanPaid), result.LoanStatus)

		closed, err := env.loanService.GetByID(ctx, loan.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, string(domain.LoanPaid), closed.Status)
		for _, p := range closed.Payments {
			assert.True(t, p.IsPaid)
			assert.NotNil(t, p.PaidAt)
		}
	})

	t.Run("QuickCloseFlagged", func(t *testing.T) {
		// Created and fully settled within the same test run, so the
		// same calendar day
		closed, err := env.loanService.GetByID(ctx, loan.ID, actor)
		require.NoError(t, err)
		assert.Contains(t, closed.FraudFlags, domain.FlagQuickClose)
	})

	t.Run("UnknownInstallment", func(t *testing.T) {
		_, _, err := env.paymentService.MarkPaid(ctx, loan.ID, 3, actor)
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})

	t.Run("UnknownLoan", func(t *testing.T) {
		_, _, err := env.paymentService.MarkPaid(ctx, "no-such-loan", 1, actor)
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})
}

func TestFraudService_QuickClose(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)
	ctx := context.Background()
	customer := env.seedCustomer(t, actor, validIDNumber)

	t.Run("OpenLoanNeverFlagged", func(t *testing.T) {
		loan, _, err := env.loanService.Create(ctx, CreateLoanInput{
			CustomerID:        customer.ID,
			PrincipalAmount:   1000,
			RepaymentPlanCode: domain.PlanFortnightly,
		}, actor)
		require.NoError(t, err)

		_, _, err = env.paymentService.MarkPaid(ctx, loan.ID, 1, actor)
		require.NoError(t, err)

		partial, err := env.loanService.GetByID(ctx, loan.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, string(domain.LoanOpen), partial.Status)
		assert.NotContains(t, partial.FraudFlags, domain.FlagQuickClose)
	})
}
