package handlers

import (
	"errors"

	"easymoney-loans/internal/adapters/http/middleware"
	"easymoney-loans/internal/core/services"
	"easymoney-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SettingsHandler handles settings, directory config and master password endpoints
type SettingsHandler struct {
	settingsService *services.SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsService *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// ADConfigRequest represents directory config update request
type ADConfigRequest struct {
	Enabled       bool   `json:"enabled"`
	ServerURL     string `json:"server_url"`
	Domain        string `json:"domain"`
	BaseDN        string `json:"base_dn"`
	DefaultRole   string `json:"default_role,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

// MasterPasswordRequest represents master password setup/verify request
type MasterPasswordRequest struct {
	Password string `json:"password"`
}

// Get returns all settings
// @Summary Get settings
// @Description All settings as a flat map; the master password hash is never included
// @Tags Settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /settings [get]
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	settings, err := h.settingsService.All(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to load settings")
	}
	return response.Success(c, "", fiber.Map{"settings": settings})
}

// Update upserts settings
// @Summary Update settings
// @Description Upsert settings keys (Admin only)
// @Tags Settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body map[string]interface{} true "Settings"
// @Success 200 {object} response.Response
// @Router /settings [put]
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	updates := map[string]any{}
	if err := c.BodyParser(&updates); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	warning, err := h.settingsService.Update(c.Context(), updates, middleware.Actor(c))
	if err != nil {
		if errors.Is(err, services.ErrInsufficientRole) {
			return response.Forbidden(c, "Insufficient permissions")
		}
		return response.InternalServerError(c, "Failed to update settings")
	}
	if warning != "" {
		return response.SuccessWithWarning(c, "Settings updated successfully", warning, nil)
	}
	return response.Success(c, "Settings updated successfully", nil)
}

// GetADConfig returns the directory configuration
// @Summary Get directory config
// @Description Current Active Directory configuration (Admin only)
// @Tags Settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /settings/ad-config [get]
func (h *SettingsHandler) GetADConfig(c *fiber.Ctx) error {
	cfg, err := h.settingsService.GetADConfig(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to load directory config")
	}
	return response.Success(c, "", fiber.Map{"ad_config": cfg})
}

// UpdateADConfig stores the directory configuration
// @Summary Update directory config
// @Description Store Active Directory connection settings (Admin only)
// @Tags Settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ADConfigRequest true "Directory config"
// @Success 200 {object} response.Response
// @Router /settings/ad-config [put]
func (h *SettingsHandler) UpdateADConfig(c *fiber.Ctx) error {
	var req ADConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	warning, err := h.settingsService.UpdateADConfig(c.Context(), services.ADConfig{
		Enabled:       req.Enabled,
		ServerURL:     req.ServerURL,
		Domain:        req.Domain,
		BaseDN:        req.BaseDN,
		DefaultRole:   req.DefaultRole,
		DefaultBranch: req.DefaultBranch,
	}, middleware.Actor(c))
	if err != nil {
		if errors.Is(err, services.ErrInsufficientRole) {
			return response.Forbidden(c, "Insufficient permissions")
		}
		return response.InternalServerError(c, "Failed to update directory config")
	}
	if warning != "" {
		return response.SuccessWithWarning(c, "Active Directory configuration updated", warning, nil)
	}
	return response.Success(c, "Active Directory configuration updated", nil)
}

// TestADConnection checks directory reachability
// @Summary Test directory connection
// @Description Verify the configured directory server is reachable (Admin only)
// @Tags Settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /settings/ad-config/test [post]
func (h *SettingsHandler) TestADConnection(c *fiber.Ctx) error {
	if err := h.settingsService.TestADConnection(c.Context(), middleware.Actor(c)); err != nil {
		if errors.Is(err, services.ErrInsufficientRole) {
			return response.Forbidden(c, "Insufficient permissions")
		}
		return response.Success(c, "", fiber.Map{
			"success": false,
			"message": "Connection failed: " + err.Error(),
		})
	}
	return response.Success(c, "", fiber.Map{
		"success": true,
		"message": "Successfully connected to Active Directory server",
	})
}

// MasterPasswordStatus reports whether the bootstrap has run
// @Summary Master password status
// @Description Whether the installation's master password is set
// @Tags Master Password
// @Produce json
// @Success 200 {object} response.Response
// @Router /master-password/status [get]
func (h *SettingsHandler) MasterPasswordStatus(c *fiber.Ctx) error {
	set, err := h.settingsService.MasterPasswordSet(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to check master password")
	}
	return response.Success(c, "", fiber.Map{"is_set": set})
}

// SetupMasterPassword runs the one-time bootstrap
// @Summary Set up master password
// @Description Store the master password and seed the default admin account; runs once
// @Tags Master Password
// @Accept json
// @Produce json
// @Param body body MasterPasswordRequest true "Master password"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /master-password/setup [post]
func (h *SettingsHandler) SetupMasterPassword(c *fiber.Ctx) error {
	var req MasterPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	admin, err := h.settingsService.SetupMasterPassword(c.Context(), req.Password)
	if err != nil {
		if errors.Is(err, services.ErrMasterPasswordSet) {
			return response.BadRequest(c, "Master password already set")
		}
		return response.BadRequest(c, "Master password must be at least 8 characters")
	}

	return response.Success(c, "Master password set successfully", fiber.Map{
		"default_admin": fiber.Map{
			"username": admin.Username,
			"password": "admin123",
		},
	})
}

// VerifyMasterPassword unlocks the app
// @Summary Verify master password
// @Description Check the master password before unlocking the client
// @Tags Master Password
// @Accept json
// @Produce json
// @Param body body MasterPasswordRequest true "Master password"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /master-password/verify [post]
func (h *SettingsHandler) VerifyMasterPassword(c *fiber.Ctx) error {
	var req MasterPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.settingsService.VerifyMasterPassword(c.Context(), req.Password); err != nil {
		if errors.Is(err, services.ErrMasterPasswordNotSet) {
			return response.BadRequest(c, "Master password not set")
		}
		return response.Unauthorized(c, "Invalid master password")
	}
	return response.Success(c, "", fiber.Map{"verified": true})
}
