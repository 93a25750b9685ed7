package handlers

import (
	"errors"

	"easymoney-loans/internal/adapters/http/middleware"
	"easymoney-loans/internal/core/services"
	"easymoney-loans/internal/pkg/pagination"
	"easymoney-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CustomerHandler handles customer endpoints
type CustomerHandler struct {
	customerService *services.CustomerService
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(customerService *services.CustomerService) *CustomerHandler {
	return &CustomerHandler{customerService: customerService}
}

// CreateCustomerRequest represents create customer request
type CreateCustomerRequest struct {
	ClientName string  `json:"client_name"`
	IDNumber   string  `json:"id_number"`
	MandateID  string  `json:"mandate_id"`
	CellPhone  *string `json:"cell_phone,omitempty"`
}

// Create creates a new customer
// @Summary Create customer
// @Description Register a new customer with a checksum-validated ID number
// @Tags Customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateCustomerRequest true "Customer data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /customers [post]
func (h *CustomerHandler) Create(c *fiber.Ctx) error {
	var req CreateCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.ClientName == "" {
		return response.BadRequest(c, "Client name is required")
	}
	if req.IDNumber == "" {
		return response.BadRequest(c, "ID number is required")
	}

	customer, warning, err := h.customerService.Create(c.Context(), services.CreateCustomerInput{
		ClientName: req.ClientName,
		IDNumber:   req.IDNumber,
		MandateID:  req.MandateID,
		CellPhone:  req.CellPhone,
	}, middleware.Actor(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCustomerNameRequired):
			return response.BadRequest(c, "Client name is required")
		case errors.Is(err, services.ErrInvalidIDNumber):
			return response.BadRequest(c, "Invalid South African ID number")
		case errors.Is(err, services.ErrCustomerExists):
			return response.Conflict(c, "Customer with this name and ID number already exists")
		default:
			return response.InternalServerError(c, "Failed to create customer")
		}
	}

	if warning != "" {
		return response.CreatedWithWarning(c, "Customer created successfully", warning, fiber.Map{"customer": customer})
	}
	return response.Created(c, "Customer created successfully", fiber.Map{"customer": customer})
}

// List lists active customers
// @Summary List customers
// @Description List non-archived customers, ID numbers masked per role
// @Tags Customers
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(50)
// @Success 200 {object} response.Response
// @Router /customers [get]
func (h *CustomerHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	customers, total, err := h.customerService.List(c.Context(), params, middleware.Actor(c))
	if err != nil {
		return response.InternalServerError(c, "Failed to list customers")
	}
	return response.Success(c, "", fiber.Map{
		"customers":  customers,
		"pagination": pagination.GetMeta(params, total),
	})
}

// GetByID returns one customer
// @Summary Get customer
// @Description Get one customer by id, archived included
// @Tags Customers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Customer ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /customers/{id} [get]
func (h *CustomerHandler) GetByID(c *fiber.Ctx) error {
	customer, err := h.customerService.GetByID(c.Context(), c.Params("id"), middleware.Actor(c))
	if err != nil {
		if errors.Is(err, services.ErrCustomerNotFound) {
			return response.NotFound(c, "Customer not found")
		}
		return response.InternalServerError(c, "Failed to get customer")
	}
	return response.Success(c, "", fiber.Map{"customer": customer})
}
