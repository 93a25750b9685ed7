package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"easymoney-loans/internal/adapters/persistence/models"
	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/domain"
	"easymoney-loans/internal/pkg/password"

	"github.com/google/uuid"
)

// User errors
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
	ErrInvalidRole    = errors.New("role must be employee, manager or admin")
	ErrWeakPassword   = errors.New("password must be at least 8 characters")
)

// CreateUserInput carries the fields for a new local user
type CreateUserInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Branch   string `json:"branch"`
}

// UserService handles user administration. Accounts are deactivated,
// never deleted.
type UserService struct {
	userRepo     *repositories.UserRepository
	auditService *AuditService
}

// NewUserService creates a new user service
func NewUserService(userRepo *repositories.UserRepository, auditService *AuditService) *UserService {
	return &UserService{userRepo: userRepo, auditService: auditService}
}

// List returns all users. Admin only.
func (s *UserService) List(ctx context.Context, actor domain.Actor) ([]*models.UserResponse, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrInsufficientRole
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	responses := make([]*models.UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, user.ToResponse())
	}
	return responses, nil
}

// Create registers a new local user. Admin only.
func (s *UserService) Create(ctx context.Context, input CreateUserInput, actor domain.Actor) (*models.UserResponse, string, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, "", ErrInsufficientRole
	}
	input.Username = strings.TrimSpace(input.Username)
	if input.Username == "" || strings.TrimSpace(input.FullName) == "" {
		return nil, "", fmt.Errorf("%w: username and full name are required", domain.ErrInvalidArgument)
	}
	if !domain.Role(input.Role).IsValid() {
		return nil, "", ErrInvalidRole
	}
	if !password.ValidatePassword(input.Password) {
		return nil, "", ErrWeakPassword
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, "", ErrUsernameExists
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     input.Username,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(input.FullName),
		Role:         input.Role,
		Branch:       strings.TrimSpace(input.Branch),
		IsActive:     true,
		AuthMethod:   string(domain.AuthLocal),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	warning := ""
	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "user",
		EntityID:   user.ID,
		Action:     "create",
		After:      map[string]any{"username": user.Username, "role": user.Role},
		Actor:      actor,
	}); err != nil {
		warning = "audit log entry could not be recorded"
	}
	return user.ToResponse(), warning, nil
}

// SetActive toggles an account on or off. Admin only; admins cannot
// deactivate themselves.
func (s *UserService) SetActive(ctx context.Context, id string, active bool, actor domain.Actor) (string, error) {
	if actor.Role != domain.RoleAdmin {
		return "", ErrInsufficientRole
	}
	if id == actor.ID && !active {
		return "", fmt.Errorf("%w: cannot deactivate your own account", domain.ErrInvalidArgument)
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	if err := s.userRepo.SetActive(ctx, id, active); err != nil {
		return "", fmt.Errorf("failed to update user: %w", err)
	}

	action := "deactivate"
	if active {
		action = "activate"
	}
	warning := ""
	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "user",
		EntityID:   id,
		Action:     action,
		Before:     map[string]any{"is_active": user.IsActive},
		After:      map[string]any{"is_active": active},
		Actor:      actor,
	}); err != nil {
		warning = "audit log entry could not be recorded"
	}
	return warning, nil
}
