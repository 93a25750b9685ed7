package services

import (
	"context"
	"testing"

	"easymoney-loans/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardService_Stats(t *testing.T) {
	env := newTestEnv(t)
	dashboard := NewDashboardService(env.customerRepo, env.loanRepo, env.paymentRepo, env.fraudService)
	actor := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)
	ctx := context.Background()

	t.Run("EmptyPortfolio", func(t *testing.T) {
		stats, err := dashboard.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.TotalCustomers)
		assert.Equal(t, int64(0), stats.TotalLoans)
		assert.Equal(t, 0.00, stats.TotalOutstanding)
	})

	customer := env.seedCustomer(t, actor, validIDNumber)

	first, _, err := env.loanService.Create(ctx, CreateLoanInput{
		CustomerID:        customer.ID,
		PrincipalAmount:   1000,
		RepaymentPlanCode: domain.PlanFortnightly,
	}, actor)
	require.NoError(t, err)

	_, _, err = env.loanService.Create(ctx, CreateLoanInput{
		CustomerID:        customer.ID,
		PrincipalAmount:   500,
		RepaymentPlanCode: domain.PlanWeekly,
	}, actor)
	require.NoError(t, err)

	// Close the first loan on its creation day to raise a quick-close alert
	_, _, err = env.paymentService.MarkPaid(ctx, first.ID, 1, actor)
	require.NoError(t, err)
	_, _, err = env.paymentService.MarkPaid(ctx, first.ID, 2, actor)
	require.NoError(t, err)

	t.Run("CountsAndAlerts", func(t *testing.T) {
		stats, err := dashboard.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.TotalCustomers)
		assert.Equal(t, int64(2), stats.TotalLoans)
		assert.Equal(t, int64(1), stats.OpenLoans)
		assert.Equal(t, int64(1), stats.PaidLoans)
		assert.Equal(t, 712.00, stats.TotalOutstanding)
		assert.Equal(t, int64(1), stats.QuickCloseAlerts)
		assert.Equal(t, int64(1), stats.DuplicateCustomerAlerts)
	})
}
