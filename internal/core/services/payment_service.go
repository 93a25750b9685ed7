package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Payment errors
var (
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentAlreadyPaid = errors.New("payment already marked as paid and cannot be reversed")
)

// MarkPaidResult reports the loan state after a payment lands
type MarkPaidResult struct {
	NewBalance float64 `json:"new_balance"`
	LoanStatus string  `json:"loan_status"`
}

// PaymentService handles installment settlement. Marking paid is
// terminal; there is no path back to unpaid.
type PaymentService struct {
	paymentRepo  *repositories.PaymentRepository
	loanRepo     *repositories.LoanRepository
	auditService *AuditService
}

// NewPaymentService creates a new payment service
func NewPaymentService(paymentRepo *repositories.PaymentRepository, loanRepo *repositories.LoanRepository, auditService *AuditService) *PaymentService {
	return &PaymentService{
		paymentRepo:  paymentRepo,
		loanRepo:     loanRepo,
		auditService: auditService,
	}
}

// MarkPaid settles one installment, recomputes the loan balance and
// closes the loan when nothing remains outstanding
func (s *PaymentService) MarkPaid(ctx context.Context, loanID string, installmentNumber int, actor domain.Actor) (*MarkPaidResult, string, error) {
	payment, err := s.paymentRepo.GetByLoanAndInstallment(ctx, loanID, installmentNumber)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, "", ErrPaymentNotFound
	}
	if payment.IsPaid {
		return nil, "", ErrPaymentAlreadyPaid
	}

	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return nil, "", ErrLoanNotFound
	}

	now := time.Now().UTC()
	if err := s.paymentRepo.MarkPaid(ctx, payment.ID, now, actor.ID); err != nil {
		return nil, "", fmt.Errorf("failed to mark payment paid: %w", err)
	}

	newBalance := decimal.NewFromFloat(loan.OutstandingBalance).
		Sub(decimal.NewFromFloat(payment.AmountDue)).
		Round(2).
		InexactFloat64()
	if newBalance < 0 {
		newBalance = 0
	}
	if newBalance <= 0 {
		loan.Status = string(domain.LoanPaid)
	}
	loan.OutstandingBalance = newBalance
	loan.UpdatedAt = &now
	loan.UpdatedBy = &actor.ID
	if err := s.loanRepo.Update(ctx, loan); err != nil {
		return nil, "", fmt.Errorf("failed to update loan balance: %w", err)
	}

	warning := ""
	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "payment",
		EntityID:   payment.ID,
		Action:     "mark_paid",
		Before:     map[string]any{"is_paid": false},
		After:      map[string]any{"is_paid": true, "paid_at": now.Format(time.RFC3339Nano)},
		Actor:      actor,
	}); err != nil {
		warning = "audit log entry could not be recorded"
	}

	return &MarkPaidResult{NewBalance: newBalance, LoanStatus: loan.Status}, warning, nil
}
