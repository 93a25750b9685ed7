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

// Customer errors
var (
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrCustomerExists       = errors.New("customer with this name and ID number already exists")
	ErrInvalidIDNumber      = errors.New("invalid South African ID number")
	ErrCustomerNameRequired = errors.New("client name is required")
)

// CreateCustomerInput carries the fields for a new customer record
type CreateCustomerInput struct {
	ClientName string  `json:"client_name"`
	IDNumber   string  `json:"id_number"`
	MandateID  string  `json:"mandate_id"`
	CellPhone  *string `json:"cell_phone"`
}

// CustomerService handles customer records and identity checks
type CustomerService struct {
	customerRepo *repositories.CustomerRepository
	userRepo     *repositories.UserRepository
	auditService *AuditService
}

// NewCustomerService creates a new customer service
func NewCustomerService(customerRepo *repositories.CustomerRepository, userRepo *repositories.UserRepository, auditService *AuditService) *CustomerService {
	return &CustomerService{
		customerRepo: customerRepo,
		userRepo:     userRepo,
		auditService: auditService,
	}
}

// Create validates and stores a new customer, then appends an audit
// entry. An audit failure does not undo the write; the warning travels
// back to the caller instead.
func (s *CustomerService) Create(ctx context.Context, input CreateCustomerInput, actor domain.Actor) (*models.CustomerResponse, string, error) {
	input.ClientName = strings.TrimSpace(input.ClientName)
	input.IDNumber = strings.TrimSpace(input.IDNumber)

	if input.ClientName == "" {
		return nil, "", ErrCustomerNameRequired
	}
	if err := idnumber.Validate(input.IDNumber); err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrInvalidIDNumber, err.Error())
	}

	exists, err := s.customerRepo.ExistsActiveByIdentity(ctx, input.ClientName, input.IDNumber)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check customer identity: %w", err)
	}
	if exists {
		return nil, "", ErrCustomerExists
	}

	customer := &models.Customer{
		ID:         uuid.New().String(),
		ClientName: input.ClientName,
		IDNumber:   input.IDNumber,
		MandateID:  strings.TrimSpace(input.MandateID),
		CellPhone:  input.CellPhone,
		CreatedAt:  time.Now().UTC(),
		CreatedBy:  actor.ID,
	}
	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return nil, "", fmt.Errorf("failed to create customer: %w", err)
	}

	warning := ""
	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "customer",
		EntityID:   customer.ID,
		Action:     "create",
		After:      customerSnapshot(customer),
		Actor:      actor,
	}); err != nil {
		warning = "audit log entry could not be recorded"
	}

	resp := s.toResponse(ctx, customer, actor)
	return &resp, warning, nil
}

// List returns active customers, newest first, masked per actor role
func (s *CustomerService) List(ctx context.Context, params *pagination.Params, actor domain.Actor) ([]models.CustomerResponse, int64, error) {
	customers, total, err := s.customerRepo.ListActive(ctx, params.Offset, params.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}

	names, err := s.creatorNames(ctx, customers)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]models.CustomerResponse, 0, len(customers))
	for _, customer := range customers {
		resp := customer.ToResponse(actor.Role.CanViewFullID())
		resp.CreatedByName = names[customer.CreatedBy]
		responses = append(responses, resp)
	}
	return responses, total, nil
}

// GetByID returns one customer, archived or not, masked per actor role
func (s *CustomerService) GetByID(ctx context.Context, id string, actor domain.Actor) (*models.CustomerResponse, error) {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}
	resp := s.toResponse(ctx, customer, actor)
	return &resp, nil
}

func (s *CustomerService) toResponse(ctx context.Context, customer *models.Customer, actor domain.Actor) models.CustomerResponse {
	resp := customer.ToResponse(actor.Role.CanViewFullID())
	if names, err := s.userRepo.NamesByIDs(ctx, []string{customer.CreatedBy}); err == nil {
		resp.CreatedByName = names[customer.CreatedBy]
	}
	return resp
}

func (s *CustomerService) creatorNames(ctx context.Context, customers []*models.Customer) (map[string]string, error) {
	ids := make([]string, 0, len(customers))
	seen := make(map[string]bool, len(customers))
	for i := range customers {
		if id := customers[i].CreatedBy; id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	names, err := s.userRepo.NamesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve creator names: %w", err)
	}
	return names, nil
}

// customerSnapshot builds the audit payload for a customer. The full ID
// number goes into the ledger; masking is a presentation concern.
func customerSnapshot(c *models.Customer) map[string]any {
	snap := map[string]any{
		"client_name": c.ClientName,
		"id_number":   c.IDNumber,
		"mandate_id":  c.MandateID,
	}
	if c.CellPhone != nil {
		snap["cell_phone"] = *c.CellPhone
	}
	return snap
}
