package services

import (
	"errors"
	"time"

	"easymoney-loans/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Calc errors
var (
	ErrInvalidPrincipal = errors.New("principal must be greater than zero")
	ErrInvalidPlanCode  = errors.New("repayment plan code must be 1, 2 or 4")
)

// Terms holds the derived monetary fields of a loan
type Terms struct {
	InterestRate      float64 `json:"interest_rate"`
	ServiceFee        float64 `json:"service_fee"`
	TotalRepayable    float64 `json:"total_repayable"`
	InstallmentAmount float64 `json:"installment_amount"`
}

// InstallmentSpec describes one scheduled installment
type InstallmentSpec struct {
	InstallmentNumber int       `json:"installment_number"`
	AmountDue         float64   `json:"amount_due"`
	DueDate           time.Time `json:"due_date"`
}

// intervalDays maps plan code to days between due dates. Policy table,
// not a formula.
var intervalDays = map[int]int{
	domain.PlanMonthly:     30,
	domain.PlanFortnightly: 14,
	domain.PlanWeekly:      7,
}

// CalcService computes loan terms and installment schedules.
// All methods are pure and deterministic.
type CalcService struct{}

// NewCalcService creates a new calc service
func NewCalcService() *CalcService {
	return &CalcService{}
}

// ComputeTerms derives the monetary fields from principal and plan code:
// fixed 40% interest plus the R12 service fee, rounded to 2 decimals.
// Business bounds on principal are the caller's concern, not this one's.
func (s *CalcService) ComputeTerms(principal float64, installmentCount int) (*Terms, error) {
	if principal <= 0 {
		return nil, ErrInvalidPrincipal
	}
	if _, ok := intervalDays[installmentCount]; !ok {
		return nil, ErrInvalidPlanCode
	}

	p := decimal.NewFromFloat(principal)
	rate := decimal.NewFromFloat(domain.InterestRate)
	fee := decimal.NewFromFloat(domain.ServiceFee)

	total := p.Mul(decimal.NewFromInt(1).Add(rate)).Add(fee).Round(2)
	installment := total.Div(decimal.NewFromInt(int64(installmentCount))).Round(2)

	return &Terms{
		InterestRate:      domain.InterestRate,
		ServiceFee:        domain.ServiceFee,
		TotalRepayable:    total.InexactFloat64(),
		InstallmentAmount: installment.InexactFloat64(),
	}, nil
}

// GenerateSchedule produces one installment spec per plan slot. Due dates
// are loanDate + interval × i (1-indexed), so nothing falls due on the
// loan date itself.
func (s *CalcService) GenerateSchedule(loanDate time.Time, totalRepayable float64, installmentCount int) ([]InstallmentSpec, error) {
	interval, ok := intervalDays[installmentCount]
	if !ok {
		return nil, ErrInvalidPlanCode
	}
	if totalRepayable <= 0 {
		return nil, ErrInvalidPrincipal
	}

	amount := decimal.NewFromFloat(totalRepayable).
		Div(decimal.NewFromInt(int64(installmentCount))).
		Round(2).
		InexactFloat64()

	schedule := make([]InstallmentSpec, 0, installmentCount)
	for i := 1; i <= installmentCount; i++ {
		schedule = append(schedule, InstallmentSpec{
			InstallmentNumber: i,
			AmountDue:         amount,
			DueDate:           loanDate.AddDate(0, 0, interval*i),
		})
	}
	return schedule, nil
}
