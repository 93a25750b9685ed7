package services

import (
	"easymoney-loans/internal/adapters/persistence/models"
	"easymoney-loans/internal/core/domain"
)

// FraudService derives advisory flags from loan and payment state.
// Flags are computed on read and never persisted.
type FraudService struct{}

// NewFraudService creates a new fraud service
func NewFraudService() *FraudService {
	return &FraudService{}
}

// Flags evaluates every heuristic against one loan. activeLoanCount is
// the number of non-archived loans the customer holds, this one included.
func (s *FraudService) Flags(loan *models.Loan, payments []*models.Payment, activeLoanCount int64) []string {
	flags := []string{}
	if s.isQuickClose(loan, payments) {
		flags = append(flags, domain.FlagQuickClose)
	}
	if activeLoanCount > 1 {
		flags = append(flags, domain.FlagDuplicateCustomer)
	}
	return flags
}

// isQuickClose reports whether a paid loan was fully settled on the same
// calendar day it was created. Legitimate borrowers have no reason to
// repay 40% interest within hours.
func (s *FraudService) isQuickClose(loan *models.Loan, payments []*models.Payment) bool {
	if loan.Status != string(domain.LoanPaid) {
		return false
	}
	var lastPaid *models.Payment
	for _, p := range payments {
		if !p.IsPaid || p.PaidAt == nil {
			continue
		}
		if lastPaid == nil || p.PaidAt.After(*lastPaid.PaidAt) {
			lastPaid = p
		}
	}
	if lastPaid == nil {
		return false
	}
	created := loan.CreatedAt.UTC()
	paid := lastPaid.PaidAt.UTC()
	return created.Year() == paid.Year() && created.YearDay() == paid.YearDay()
}
