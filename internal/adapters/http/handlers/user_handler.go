package handlers

import (
	"errors"

	"easymoney-loans/internal/adapters/http/middleware"
	"easymoney-loans/internal/core/services"
	"easymoney-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles user administration endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// CreateUserRequest represents create user request
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Branch   string `json:"branch"`
}

// SetActiveRequest represents an activate/deactivate request
type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// List lists all users
// @Summary List users
// @Description List all users (Admin only)
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /users [get]
func (h *UserHandler) List(c *fiber.Ctx) error {
	users, err := h.userService.List(c.Context(), middleware.Actor(c))
	if err != nil {
		if errors.Is(err, services.ErrInsufficientRole) {
			return response.Forbidden(c, "Insufficient permissions")
		}
		return response.InternalServerError(c, "Failed to list users")
	}
	return response.Success(c, "", fiber.Map{"users": users})
}

// Create creates a new local user
// @Summary Create user
// @Description Register a new local user (Admin only)
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateUserRequest true "User data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /users [post]
func (h *UserHandler) Create(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, warning, err := h.userService.Create(c.Context(), services.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
		Branch:   req.Branch,
	}, middleware.Actor(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientRole):
			return response.Forbidden(c, "Insufficient permissions")
		case errors.Is(err, services.ErrUsernameExists):
			return response.Conflict(c, "Username already exists")
		case errors.Is(err, services.ErrInvalidRole):
			return response.BadRequest(c, "Role must be employee, manager or admin")
		case errors.Is(err, services.ErrWeakPassword):
			return response.BadRequest(c, "Password must be at least 8 characters")
		default:
			return response.BadRequest(c, "Failed to create user")
		}
	}

	if warning != "" {
		return response.CreatedWithWarning(c, "User created successfully", warning, fiber.Map{"user": user})
	}
	return response.Created(c, "User created successfully", fiber.Map{"user": user})
}

// SetActive toggles an account
// @Summary Activate or deactivate user
// @Description Toggle a user's active flag (Admin only); accounts are never deleted
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param body body SetActiveRequest true "Active flag"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id}/active [put]
func (h *UserHandler) SetActive(c *fiber.Ctx) error {
	var req SetActiveRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	warning, err := h.userService.SetActive(c.Context(), c.Params("id"), req.IsActive, middleware.Actor(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientRole):
			return response.Forbidden(c, "Insufficient permissions")
		case errors.Is(err, services.ErrUserNotFound):
			return response.NotFound(c, "User not found")
		default:
			return response.BadRequest(c, "Failed to update user")
		}
	}

	message := "User deactivated"
	if req.IsActive {
		message = "User activated"
	}
	if warning != "" {
		return response.SuccessWithWarning(c, message, warning, nil)
	}
	return response.Success(c, message, nil)
}
