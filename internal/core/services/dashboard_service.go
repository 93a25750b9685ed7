package services

import (
	"context"
	"fmt"

	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/domain"

	"github.com/shopspring/decimal"
)

// DashboardStats is the summary snapshot for the landing screen
type DashboardStats struct {
	TotalCustomers          int64   `json:"total_customers"`
	TotalLoans              int64   `json:"total_loans"`
	OpenLoans               int64   `json:"open_loans"`
	PaidLoans               int64   `json:"paid_loans"`
	TotalOutstanding        float64 `json:"total_outstanding"`
	QuickCloseAlerts        int64   `json:"quick_close_alerts"`
	DuplicateCustomerAlerts int64   `json:"duplicate_customer_alerts"`
}

// DashboardService aggregates portfolio counters and fraud alert totals
type DashboardService struct {
	customerRepo *repositories.CustomerRepository
	loanRepo     *repositories.LoanRepository
	paymentRepo  *repositories.PaymentRepository
	fraudService *FraudService
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(customerRepo *repositories.CustomerRepository, loanRepo *repositories.LoanRepository, paymentRepo *repositories.PaymentRepository, fraudService *FraudService) *DashboardService {
	return &DashboardService{
		customerRepo: customerRepo,
		loanRepo:     loanRepo,
		paymentRepo:  paymentRepo,
		fraudService: fraudService,
	}
}

// Stats computes the dashboard snapshot. Fraud alert counters reuse the
// same heuristics the loan reads apply, so the numbers always agree.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	var err error
	if stats.TotalCustomers, err = s.customerRepo.CountActive(ctx); err != nil {
		return nil, fmt.Errorf("failed to count customers: %w", err)
	}
	if stats.TotalLoans, err = s.loanRepo.CountActive(ctx, ""); err != nil {
		return nil, fmt.Errorf("failed to count loans: %w", err)
	}
	if stats.OpenLoans, err = s.loanRepo.CountActive(ctx, string(domain.LoanOpen)); err != nil {
		return nil, fmt.Errorf("failed to count open loans: %w", err)
	}
	if stats.PaidLoans, err = s.loanRepo.CountActive(ctx, string(domain.LoanPaid)); err != nil {
		return nil, fmt.Errorf("failed to count paid loans: %w", err)
	}

	outstanding, err := s.loanRepo.SumOutstandingOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum outstanding balances: %w", err)
	}
	stats.TotalOutstanding = decimal.NewFromFloat(outstanding).Round(2).InexactFloat64()

	loans, err := s.loanRepo.ListAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load loans: %w", err)
	}
	if len(loans) == 0 {
		return stats, nil
	}

	loanIDs := make([]string, 0, len(loans))
	perCustomer := make(map[string]int64)
	for _, loan := range loans {
		loanIDs = append(loanIDs, loan.ID)
		perCustomer[loan.CustomerID]++
	}
	paymentsByLoan, err := s.paymentRepo.ListByLoans(ctx, loanIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	for _, loan := range loans {
		if s.fraudService.isQuickClose(loan, paymentsByLoan[loan.ID]) {
			stats.QuickCloseAlerts++
		}
	}
	for _, count := range perCustomer {
		if count > 1 {
			stats.DuplicateCustomerAlerts++
		}
	}
	return stats, nil
}
