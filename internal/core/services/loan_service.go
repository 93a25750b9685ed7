package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"easymoney-loans/internal/adapters/persistence/models"
	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/domain"
	"easymoney-loans/internal/pkg/idnumber"
	"easymoney-loans/internal/pkg/pagination"

	"github.com/google/uuid"
)

// Loan errors
var (
	ErrLoanNotFound         = errors.New("loan not found")
	ErrPrincipalOutOfBounds = errors.New("principal amount must be between 400 and 8000")
	ErrFieldNotOverridable  = errors.New("field cannot be overridden")
	ErrReasonTooShort       = errors.New("reason must be at least 10 characters")
	ErrInsufficientRole     = errors.New("insufficient permissions for this operation")
)

// overridableFields are the locked loan fields the override workflow may touch
var overridableFields = map[string]bool{
	"loan_date":           true,
	"principal_amount":    true,
	"repayment_plan_code": true,
}

// CreateLoanInput carries the fields for a new loan
type CreateLoanInput struct {
	CustomerID        string    `json:"customer_id"`
	LoanDate          time.Time `json:"loan_date"`
	PrincipalAmount   float64   `json:"principal_amount"`
	RepaymentPlanCode int       `json:"repayment_plan_code"`
}

// OverrideFieldInput carries one locked-field override request
type OverrideFieldInput struct {
	LoanID    string `json:"loan_id"`
	FieldName string `json:"field_name"`
	NewValue  any    `json:"new_value"`
	Reason    string `json:"reason"`
}

// LoanService handles loan creation, listing and the override workflow
type LoanService struct {
	loanRepo     *repositories.LoanRepository
	paymentRepo  *repositories.PaymentRepository
	customerRepo *repositories.CustomerRepository
	userRepo     *repositories.UserRepository
	calcService  *CalcService
	fraudService *FraudService
	auditService *AuditService
}

// NewLoanService creates a new loan service
func NewLoanService(
	loanRepo *repositories.LoanRepository,
	paymentRepo *repositories.PaymentRepository,
	customerRepo *repositories.CustomerRepository,
	userRepo *repositories.UserRepository,
	calcService *CalcService,
	fraudService *FraudService,
	auditService *AuditService,
) *LoanService {
	return &LoanService{
		loanRepo:     loanRepo,
		paymentRepo:  paymentRepo,
		customerRepo: customerRepo,
		userRepo:     userRepo,
		calcService:  calcService,
		fraudService: fraudService,
		auditService: auditService,
	}
}

// Create validates the request, derives terms, stores the loan with its
// full installment schedule and appends an audit entry. Fields are
// locked immediately; later changes go through Override only.
func (s *LoanService) Create(ctx context.Context, input CreateLoanInput, actor domain.Actor) (*models.LoanResponse, string, error) {
	customer, err := s.customerRepo.GetByID(ctx, input.CustomerID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get customer: %w", err)
	}
	if customer == nil || customer.IsArchived() {
		return nil, "", ErrCustomerNotFound
	}
	if input.PrincipalAmount < domain.MinPrincipal || input.PrincipalAmount > domain.MaxPrincipal {
		return nil, "", ErrPrincipalOutOfBounds
	}
	if input.LoanDate.IsZero() {
		input.LoanDate = time.Now().UTC()
	}

	terms, err := s.calcService.ComputeTerms(input.PrincipalAmount, input.RepaymentPlanCode)
	if err != nil {
		return nil, "", err
	}
	schedule, err := s.calcService.GenerateSchedule(input.LoanDate, terms.TotalRepayable, input.RepaymentPlanCode)
	if err != nil {
		return nil, "", err
	}

	loan := &models.Loan{
		ID:                 uuid.New().String(),
		CustomerID:         input.CustomerID,
		LoanDate:           input.LoanDate,
		PrincipalAmount:    input.PrincipalAmount,
		InterestRate:       terms.InterestRate,
		ServiceFee:         terms.ServiceFee,
		TotalRepayable:     terms.TotalRepayable,
		RepaymentPlanCode:  input.RepaymentPlanCode,
		InstallmentAmount:  terms.InstallmentAmount,
		OutstandingBalance: terms.TotalRepayable,
		Status:             string(domain.LoanOpen),
		FieldsLocked:       true,
		CreatedAt:          time.Now().UTC(),
		CreatedBy:          actor.ID,
	}
	if err := s.loanRepo.Create(ctx, loan); err != nil {
		return nil, "", fmt.Errorf("failed to create loan: %w", err)
	}

	payments := make([]*models.Payment, 0, len(schedule))
	for _, spec := range schedule {
		payments = append(payments, &models.Payment{
			ID:                uuid.New().String(),
			LoanID:            loan.ID,
			InstallmentNumber: spec.InstallmentNumber,
			AmountDue:         spec.AmountDue,
			DueDate:           spec.DueDate,
		})
	}
	if err := s.paymentRepo.CreateBatch(ctx, payments); err != nil {
		return nil, "", fmt.Errorf("failed to create payment schedule: %w", err)
	}

	warning := ""
	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "loan",
		EntityID:   loan.ID,
		Action:     "create",
		After: map[string]any{
			"customer_id": loan.CustomerID,
			"principal":   loan.PrincipalAmount,
			"plan":        loan.RepaymentPlanCode,
		},
		Actor: actor,
	}); err != nil {
		warning = "audit log entry could not be recorded"
	}

	resp, err := s.enrich(ctx, loan, payments, customer, actor)
	if err != nil {
		return nil, warning, err
	}
	return resp, warning, nil
}

// List returns non-archived loans, optionally filtered by status, each
// fully enriched with customer data, payments and fraud flags
func (s *LoanService) List(ctx context.Context, status string, params *pagination.Params, actor domain.Actor) ([]models.LoanResponse, int64, error) {
	loans, total, err := s.loanRepo.ListActive(ctx, status, params.Offset, params.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list loans: %w", err)
	}
	if len(loans) == 0 {
		return []models.LoanResponse{}, total, nil
	}

	loanIDs := make([]string, 0, len(loans))
	customerIDs := make([]string, 0, len(loans))
	seenCustomer := make(map[string]bool, len(loans))
	for _, loan := range loans {
		loanIDs = append(loanIDs, loan.ID)
		if !seenCustomer[loan.CustomerID] {
			seenCustomer[loan.CustomerID] = true
			customerIDs = append(customerIDs, loan.CustomerID)
		}
	}

	paymentsByLoan, err := s.paymentRepo.ListByLoans(ctx, loanIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load payments: %w", err)
	}
	loanCounts, err := s.loanRepo.CountActiveByCustomers(ctx, customerIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count customer loans: %w", err)
	}

	customers := make(map[string]*models.Customer, len(customerIDs))
	for _, cid := range customerIDs {
		customer, err := s.customerRepo.GetByID(ctx, cid)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to get customer: %w", err)
		}
		customers[cid] = customer
	}

	responses := make([]models.LoanResponse, 0, len(loans))
	for _, loan := range loans {
		payments := paymentsByLoan[loan.ID]
		resp := s.buildResponse(loan, payments, customers[loan.CustomerID], actor)
		resp.FraudFlags = s.fraudService.Flags(loan, payments, loanCounts[loan.CustomerID])
		responses = append(responses, *resp)
	}
	if err := s.enrichNames(ctx, responses); err != nil {
		return nil, 0, err
	}
	return responses, total, nil
}

// GetByID returns one loan fully enriched
func (s *LoanService) GetByID(ctx context.Context, id string, actor domain.Actor) (*models.LoanResponse, error) {
	loan, err := s.loanRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	payments, err := s.paymentRepo.ListByLoan(ctx, loan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	customer, err := s.customerRepo.GetByID(ctx, loan.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return s.enrich(ctx, loan, payments, customer, actor)
}

// Override changes one locked loan field with a mandatory reason.
// Manager or admin only; the guard runs here as well as at the route so
// the rule holds for every caller of the service.
func (s *LoanService) Override(ctx context.Context, input OverrideFieldInput, actor domain.Actor) (string, error) {
	if actor.Role != domain.RoleManager && actor.Role != domain.RoleAdmin {
		return "", ErrInsufficientRole
	}
	if !overridableFields[input.FieldName] {
		return "", fmt.Errorf("%w: %s", ErrFieldNotOverridable, input.FieldName)
	}
	if len(strings.TrimSpace(input.Reason)) < domain.MinReasonLength {
		return "", ErrReasonTooShort
	}

	loan, err := s.loanRepo.GetByID(ctx, input.LoanID)
	if err != nil {
		return "", fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return "", ErrLoanNotFound
	}

	var before, after any
	now := time.Now().UTC()
	loan.UpdatedAt = &now
	loan.UpdatedBy = &actor.ID

	switch input.FieldName {
	case "loan_date":
		newDate, err := parseOverrideDate(input.NewValue)
		if err != nil {
			return "", err
		}
		before, after = loan.LoanDate.Format(time.RFC3339), newDate.Format(time.RFC3339)
		loan.LoanDate = newDate
	case "principal_amount":
		newPrincipal, ok := toFloat(input.NewValue)
		if !ok {
			return "", fmt.Errorf("%w: principal_amount must be a number", domain.ErrInvalidArgument)
		}
		if newPrincipal < domain.MinPrincipal || newPrincipal > domain.MaxPrincipal {
			return "", ErrPrincipalOutOfBounds
		}
		before, after = loan.PrincipalAmount, newPrincipal
		loan.PrincipalAmount = newPrincipal
		if err := s.recomputeTerms(ctx, loan); err != nil {
			return "", err
		}
	case "repayment_plan_code":
		newPlanFloat, ok := toFloat(input.NewValue)
		newPlan := int(newPlanFloat)
		if !ok || float64(newPlan) != newPlanFloat {
			return "", fmt.Errorf("%w: repayment_plan_code must be an integer", domain.ErrInvalidArgument)
		}
		before, after = loan.RepaymentPlanCode, newPlan
		loan.RepaymentPlanCode = newPlan
		if err := s.recomputeTerms(ctx, loan); err != nil {
			return "", err
		}
	}

	if err := s.loanRepo.Update(ctx, loan); err != nil {
		return "", fmt.Errorf("failed to update loan: %w", err)
	}

	warning := ""
	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "loan",
		EntityID:   loan.ID,
		Action:     "field_override",
		Before:     map[string]any{input.FieldName: before},
		After:      map[string]any{input.FieldName: after},
		Actor:      actor,
		Reason:     strings.TrimSpace(input.Reason),
	}); err != nil {
		warning = "audit log entry could not be recorded"
	}
	return warning, nil
}

// recomputeTerms rederives the monetary fields after an override.
// Payments already marked paid stay netted out of the new balance, so
// an override never resurrects settled debt.
func (s *LoanService) recomputeTerms(ctx context.Context, loan *models.Loan) error {
	terms, err := s.calcService.ComputeTerms(loan.PrincipalAmount, loan.RepaymentPlanCode)
	if err != nil {
		return err
	}
	paid, err := s.paymentRepo.SumPaidByLoan(ctx, loan.ID)
	if err != nil {
		return fmt.Errorf("failed to sum paid installments: %w", err)
	}
	loan.InterestRate = terms.InterestRate
	loan.ServiceFee = terms.ServiceFee
	loan.TotalRepayable = terms.TotalRepayable
	loan.InstallmentAmount = terms.InstallmentAmount
	balance := terms.TotalRepayable - paid
	if balance < 0 {
		balance = 0
	}
	loan.OutstandingBalance = balance
	if balance <= 0 {
		loan.Status = string(domain.LoanPaid)
	} else {
		loan.Status = string(domain.LoanOpen)
	}
	return nil
}

func (s *LoanService) enrich(ctx context.Context, loan *models.Loan, payments []*models.Payment, customer *models.Customer, actor domain.Actor) (*models.LoanResponse, error) {
	counts, err := s.loanRepo.CountActiveByCustomers(ctx, []string{loan.CustomerID})
	if err != nil {
		return nil, fmt.Errorf("failed to count active loans: %w", err)
	}
	count := counts[loan.CustomerID]
	resp := s.buildResponse(loan, payments, customer, actor)
	resp.FraudFlags = s.fraudService.Flags(loan, payments, count)

	responses := []models.LoanResponse{*resp}
	if err := s.enrichNames(ctx, responses); err != nil {
		return nil, err
	}
	return &responses[0], nil
}

func (s *LoanService) buildResponse(loan *models.Loan, payments []*models.Payment, customer *models.Customer, actor domain.Actor) *models.LoanResponse {
	resp := &models.LoanResponse{
		ID:                 loan.ID,
		CustomerID:         loan.CustomerID,
		LoanDate:           loan.LoanDate,
		PrincipalAmount:    loan.PrincipalAmount,
		InterestRate:       loan.InterestRate,
		ServiceFee:         loan.ServiceFee,
		TotalRepayable:     loan.TotalRepayable,
		RepaymentPlanCode:  loan.RepaymentPlanCode,
		InstallmentAmount:  loan.InstallmentAmount,
		OutstandingBalance: loan.OutstandingBalance,
		Status:             loan.Status,
		FieldsLocked:       loan.FieldsLocked,
		CreatedAt:          loan.CreatedAt,
		CreatedBy:          loan.CreatedBy,
		UpdatedAt:          loan.UpdatedAt,
		UpdatedBy:          loan.UpdatedBy,
		ArchivedAt:         loan.ArchivedAt,
		ArchivedBy:         loan.ArchivedBy,
		CustomerName:       "Unknown",
		CustomerIDNumber:   "Unknown",
		MandateID:          "Unknown",
		Payments:           []models.PaymentResponse{},
		FraudFlags:         []string{},
	}
	if customer != nil {
		masked := idnumber.Mask(customer.IDNumber)
		resp.CustomerName = customer.ClientName
		resp.CustomerIDNumberMasked = masked
		resp.CustomerIDNumber = masked
		if actor.Role.CanViewFullID() {
			resp.CustomerIDNumber = customer.IDNumber
		}
		resp.MandateID = customer.MandateID
	}
	for _, p := range payments {
		resp.Payments = append(resp.Payments, p.ToResponse())
	}
	return resp
}

// enrichNames resolves created_by and paid_by user IDs to full names in
// one batch query per page
func (s *LoanService) enrichNames(ctx context.Context, responses []models.LoanResponse) error {
	ids := make([]string, 0, len(responses))
	seen := make(map[string]bool)
	collect := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for i := range responses {
		collect(responses[i].CreatedBy)
		for j := range responses[i].Payments {
			if pb := responses[i].Payments[j].PaidBy; pb != nil {
				collect(*pb)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}
	names, err := s.userRepo.NamesByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to resolve user names: %w", err)
	}
	for i := range responses {
		responses[i].CreatedByName = names[responses[i].CreatedBy]
		for j := range responses[i].Payments {
			if pb := responses[i].Payments[j].PaidBy; pb != nil {
				responses[i].Payments[j].PaidByName = names[*pb]
			}
		}
	}
	return nil
}

func parseOverrideDate(v any) (time.Time, error) {
	switch val := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, val); err == nil {
				return t, nil
			}
		}
	case time.Time:
		return val, nil
	}
	return time.Time{}, fmt.Errorf("%w: loan_date must be an ISO date", domain.ErrInvalidArgument)
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	}
	return 0, false
}
