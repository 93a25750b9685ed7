package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/domain"
)

// Archive errors
var (
	ErrUnknownEntityType = errors.New("entity type must be customer or loan")
	ErrAlreadyArchived   = errors.New("entity is already archived")
)

// ArchiveService soft-deletes customers and loans. Archival never
// cascades: archiving a customer leaves their loans active and vice
// versa.
type ArchiveService struct {
	customerRepo *repositories.CustomerRepository
	loanRepo     *repositories.LoanRepository
	auditService *AuditService
}

// NewArchiveService creates a new archive service
func NewArchiveService(customerRepo *repositories.CustomerRepository, loanRepo *repositories.LoanRepository, auditService *AuditService) *ArchiveService {
	return &ArchiveService{
		customerRepo: customerRepo,
		loanRepo:     loanRepo,
		auditService: auditService,
	}
}

// Archive marks one entity archived with a mandatory reason. Admin only.
func (s *ArchiveService) Archive(ctx context.Context, entityType, entityID, reason string, actor domain.Actor) (string, error) {
	if actor.Role != domain.RoleAdmin {
		return "", ErrInsufficientRole
	}
	reason = strings.TrimSpace(reason)
	if len(reason) < domain.MinReasonLength {
		return "", ErrReasonTooShort
	}

	now := time.Now().UTC()
	switch entityType {
	case "customer":
		customer, err := s.customerRepo.GetByID(ctx, entityID)
		if err != nil {
			return "", fmt.Errorf("failed to get customer: %w", err)
		}
		if customer == nil {
			return "", ErrCustomerNotFound
		}
		if customer.IsArchived() {
			return "", ErrAlreadyArchived
		}
		if err := s.customerRepo.Archive(ctx, entityID, now, actor.ID); err != nil {
			return "", fmt.Errorf("failed to archive customer: %w", err)
		}
	case "loan":
		loan, err := s.loanRepo.GetByID(ctx, entityID)
		if err != nil {
			return "", fmt.Errorf("failed to get loan: %w", err)
		}
		if loan == nil {
			return "", ErrLoanNotFound
		}
		if loan.IsArchived() {
			return "", ErrAlreadyArchived
		}
		if err := s.loanRepo.Archive(ctx, entityID, now, actor.ID); err != nil {
			return "", fmt.Errorf("failed to archive loan: %w", err)
		}
	default:
		return "", ErrUnknownEntityType
	}

	warning := ""
	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     "archive",
		After:      map[string]any{"archived_at": now.Format(time.RFC3339Nano)},
		Actor:      actor,
		Reason:     reason,
	}); err != nil {
		warning = "audit log entry could not be recorded"
	}
	return warning, nil
}
