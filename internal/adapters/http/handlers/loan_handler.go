package handlers

import (
	"errors"
	"time"

	"easymoney-loans/internal/adapters/http/middleware"
	"easymoney-loans/internal/core/services"
	"easymoney-loans/internal/pkg/pagination"
	"easymoney-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// LoanHandler handles loan, payment and archive endpoints
type LoanHandler struct {
	loanService    *services.LoanService
	paymentService *services.PaymentService
	archiveService *services.ArchiveService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService *services.LoanService, paymentService *services.PaymentService, archiveService *services.ArchiveService) *LoanHandler {
	return &LoanHandler{
		loanService:    loanService,
		paymentService: paymentService,
		archiveService: archiveService,
	}
}

// CreateLoanRequest represents create loan request
type CreateLoanRequest struct {
	CustomerID        string  `json:"customer_id"`
	LoanDate          string  `json:"loan_date,omitempty"`
	PrincipalAmount   float64 `json:"principal_amount"`
	RepaymentPlanCode int     `json:"repayment_plan_code"`
}

// OverrideFieldRequest represents a locked-field override request
type OverrideFieldRequest struct {
	LoanID    string `json:"loan_id"`
	FieldName string `json:"field_name"`
	NewValue  any    `json:"new_value"`
	Reason    string `json:"reason"`
}

// MarkPaymentRequest represents a mark-paid request
type MarkPaymentRequest struct {
	LoanID            string `json:"loan_id"`
	InstallmentNumber int    `json:"installment_number"`
}

// ArchiveRequest represents an archive request
type ArchiveRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Reason     string `json:"reason"`
}

// Create creates a new loan
// @Summary Create loan
// @Description Create a loan with derived terms and a full installment schedule
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateLoanRequest true "Loan data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans [post]
func (h *LoanHandler) Create(c *fiber.Ctx) error {
	var req CreateLoanRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.CustomerID == "" {
		return response.BadRequest(c, "Customer ID is required")
	}
	if req.PrincipalAmount <= 0 {
		return response.BadRequest(c, "Principal amount must be greater than 0")
	}

	loanDate := time.Time{}
	if req.LoanDate != "" {
		var err error
		if loanDate, err = parseDate(req.LoanDate); err != nil {
			return response.BadRequest(c, "Loan date must be an ISO date")
		}
	}

	loan, warning, err := h.loanService.Create(c.Context(), services.CreateLoanInput{
		CustomerID:        req.CustomerID,
		LoanDate:          loanDate,
		PrincipalAmount:   req.PrincipalAmount,
		RepaymentPlanCode: req.RepaymentPlanCode,
	}, middleware.Actor(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCustomerNotFound):
			return response.NotFound(c, "Customer not found")
		case errors.Is(err, services.ErrPrincipalOutOfBounds):
			return response.BadRequest(c, "Principal amount must be between 400 and 8000")
		case errors.Is(err, services.ErrInvalidPlanCode):
			return response.BadRequest(c, "Repayment plan code must be 1, 2 or 4")
		case errors.Is(err, services.ErrInvalidPrincipal):
			return response.BadRequest(c, "Principal must be greater than zero")
		default:
			return response.InternalServerError(c, "Failed to create loan")
		}
	}

	if warning != "" {
		return response.CreatedWithWarning(c, "Loan created successfully", warning, fiber.Map{"loan": loan})
	}
	return response.Created(c, "Loan created successfully", fiber.Map{"loan": loan})
}

// List lists loans
// @Summary List loans
// @Description List non-archived loans with payments and fraud flags
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param loan_status query string false "Filter by status (open|paid)"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(50)
// @Success 200 {object} response.Response
// @Router /loans [get]
func (h *LoanHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	loans, total, err := h.loanService.List(c.Context(), c.Query("loan_status"), params, middleware.Actor(c))
	if err != nil {
		return response.InternalServerError(c, "Failed to list loans")
	}
	return response.Success(c, "", fiber.Map{
		"loans":      loans,
		"pagination": pagination.GetMeta(params, total),
	})
}

// GetByID returns one loan
// @Summary Get loan
// @Description Get one loan with payments and fraud flags
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id} [get]
func (h *LoanHandler) GetByID(c *fiber.Ctx) error {
	loan, err := h.loanService.GetByID(c.Context(), c.Params("id"), middleware.Actor(c))
	if err != nil {
		if errors.Is(err, services.ErrLoanNotFound) {
			return response.NotFound(c, "Loan not found")
		}
		return response.InternalServerError(c, "Failed to get loan")
	}
	return response.Success(c, "", fiber.Map{"loan": loan})
}

// Override changes one locked loan field
// @Summary Override locked field
// @Description Override a locked loan field with a mandatory reason (Manager/Admin only)
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body OverrideFieldRequest true "Override data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/override-field [post]
func (h *LoanHandler) Override(c *fiber.Ctx) error {
	var req OverrideFieldRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.LoanID == "" {
		return response.BadRequest(c, "Loan ID is required")
	}

	warning, err := h.loanService.Override(c.Context(), services.OverrideFieldInput{
		LoanID:    req.LoanID,
		FieldName: req.FieldName,
		NewValue:  req.NewValue,
		Reason:    req.Reason,
	}, middleware.Actor(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientRole):
			return response.Forbidden(c, "Insufficient permissions")
		case errors.Is(err, services.ErrLoanNotFound):
			return response.NotFound(c, "Loan not found")
		case errors.Is(err, services.ErrFieldNotOverridable):
			return response.BadRequest(c, "Field cannot be overridden")
		case errors.Is(err, services.ErrReasonTooShort):
			return response.BadRequest(c, "Reason must be at least 10 characters")
		case errors.Is(err, services.ErrPrincipalOutOfBounds):
			return response.BadRequest(c, "Principal amount must be between 400 and 8000")
		case errors.Is(err, services.ErrInvalidPlanCode):
			return response.BadRequest(c, "Repayment plan code must be 1, 2 or 4")
		default:
			return response.BadRequest(c, "Failed to override field")
		}
	}

	if warning != "" {
		return response.SuccessWithWarning(c, "Field updated successfully", warning, nil)
	}
	return response.Success(c, "Field updated successfully", nil)
}

// MarkPaid settles one installment
// @Summary Mark payment paid
// @Description Mark one installment paid; irreversible by design
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body MarkPaymentRequest true "Payment reference"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /payments/mark-paid [post]
func (h *LoanHandler) MarkPaid(c *fiber.Ctx) error {
	var req MarkPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.LoanID == "" || req.InstallmentNumber < 1 {
		return response.BadRequest(c, "Loan ID and installment number are required")
	}

	result, warning, err := h.paymentService.MarkPaid(c.Context(), req.LoanID, req.InstallmentNumber, middleware.Actor(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPaymentNotFound):
			return response.NotFound(c, "Payment not found")
		case errors.Is(err, services.ErrLoanNotFound):
			return response.NotFound(c, "Loan not found")
		case errors.Is(err, services.ErrPaymentAlreadyPaid):
			return response.Conflict(c, "Payment already marked as paid - cannot be reversed")
		default:
			return response.InternalServerError(c, "Failed to mark payment paid")
		}
	}

	data := fiber.Map{
		"new_balance": result.NewBalance,
		"loan_status": result.LoanStatus,
	}
	if warning != "" {
		return response.SuccessWithWarning(c, "Payment marked as paid", warning, data)
	}
	return response.Success(c, "Payment marked as paid", data)
}

// Archive soft-deletes a customer or loan
// @Summary Archive entity
// @Description Archive a customer or loan with a mandatory reason (Admin only)
// @Tags Archive
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ArchiveRequest true "Archive data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /archive [post]
func (h *LoanHandler) Archive(c *fiber.Ctx) error {
	var req ArchiveRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	warning, err := h.archiveService.Archive(c.Context(), req.EntityType, req.EntityID, req.Reason, middleware.Actor(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientRole):
			return response.Forbidden(c, "Insufficient permissions")
		case errors.Is(err, services.ErrReasonTooShort):
			return response.BadRequest(c, "Archive reason must be at least 10 characters")
		case errors.Is(err, services.ErrUnknownEntityType):
			return response.BadRequest(c, "Invalid entity type")
		case errors.Is(err, services.ErrCustomerNotFound):
			return response.NotFound(c, "Customer not found")
		case errors.Is(err, services.ErrLoanNotFound):
			return response.NotFound(c, "Loan not found")
		case errors.Is(err, services.ErrAlreadyArchived):
			return response.Conflict(c, "Entity is already archived")
		default:
			return response.InternalServerError(c, "Failed to archive entity")
		}
	}

	if warning != "" {
		return response.SuccessWithWarning(c, "Archived successfully", warning, nil)
	}
	return response.Success(c, "Archived successfully", nil)
}

// parseDate accepts RFC3339 or a bare calendar date
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
