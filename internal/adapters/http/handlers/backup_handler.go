package handlers

import (
	"errors"

	"easymoney-loans/internal/adapters/http/middleware"
	"easymoney-loans/internal/core/services"
	"easymoney-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// BackupHandler handles backup and restore endpoints
type BackupHandler struct {
	backupService *services.BackupService
}

// NewBackupHandler creates a new backup handler
func NewBackupHandler(backupService *services.BackupService) *BackupHandler {
	return &BackupHandler{backupService: backupService}
}

// BackupConfigRequest represents a backup config update
type BackupConfigRequest struct {
	FolderPath string `json:"folder_path"`
	AutoBackup bool   `json:"auto_backup"`
}

// CreateBackupRequest represents a backup request
type CreateBackupRequest struct {
	BackupPath string `json:"backup_path,omitempty"`
}

// RestoreBackupRequest represents a restore request
type RestoreBackupRequest struct {
	Filepath string `json:"filepath"`
}

// Status returns backup config and last backup info
// @Summary Backup status
// @Description Backup configuration and last backup info (Admin only)
// @Tags Backup
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /backup/status [get]
func (h *BackupHandler) Status(c *fiber.Ctx) error {
	status, err := h.backupService.Status(c.Context(), middleware.Actor(c))
	if err != nil {
		if errors.Is(err, services.ErrInsufficientRole) {
			return response.Forbidden(c, "Insufficient permissions")
		}
		return response.InternalServerError(c, "Failed to load backup status")
	}
	return response.Success(c, "", status)
}

// UpdateConfig stores the backup configuration
// @Summary Update backup config
// @Description Set the backup folder and auto-backup flag (Admin only)
// @Tags Backup
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body BackupConfigRequest true "Backup config"
// @Success 200 {object} response.Response
// @Router /backup/config [put]
func (h *BackupHandler) UpdateConfig(c *fiber.Ctx) error {
	var req BackupConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	warning, err := h.backupService.UpdateConfig(c.Context(), services.BackupSettings{
		FolderPath: req.FolderPath,
		AutoBackup: req.AutoBackup,
	}, middleware.Actor(c))
	if err != nil {
		if errors.Is(err, services.ErrInsufficientRole) {
			return response.Forbidden(c, "Insufficient permissions")
		}
		return response.InternalServerError(c, "Failed to update backup config")
	}
	if warning != "" {
		return response.SuccessWithWarning(c, "Backup configuration updated", warning, nil)
	}
	return response.Success(c, "Backup configuration updated", nil)
}

// Create writes a full JSON backup
// @Summary Create backup
// @Description Dump the whole database to a JSON file (Admin only)
// @Tags Backup
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateBackupRequest false "Backup options"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /backup/create [post]
func (h *BackupHandler) Create(c *fiber.Ctx) error {
	var req CreateBackupRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	result, warning, err := h.backupService.Create(c.Context(), req.BackupPath, middleware.Actor(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientRole):
			return response.Forbidden(c, "Insufficient permissions")
		case errors.Is(err, services.ErrBackupPathNotSet):
			return response.BadRequest(c, "No backup path configured. Set path in Admin Panel > Backup Settings")
		case errors.Is(err, services.ErrBackupPathInvalid):
			return response.BadRequest(c, "Cannot access backup folder")
		default:
			return response.InternalServerError(c, "Backup failed")
		}
	}

	data := fiber.Map{
		"filename":      result.Filename,
		"filepath":      result.Filepath,
		"backup_size":   result.BackupSize,
		"records_count": result.RecordsCount,
	}
	if warning != "" {
		return response.SuccessWithWarning(c, "Backup created successfully", warning, data)
	}
	return response.Success(c, "Backup created successfully", data)
}

// Restore replaces operational data from a backup file
// @Summary Restore backup
// @Description Replace customers, loans and payments from a backup file (Admin only)
// @Tags Backup
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RestoreBackupRequest true "Backup file path"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /backup/restore [post]
func (h *BackupHandler) Restore(c *fiber.Ctx) error {
	var req RestoreBackupRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Filepath == "" {
		return response.BadRequest(c, "Backup file path is required")
	}

	counts, warning, err := h.backupService.Restore(c.Context(), req.Filepath, middleware.Actor(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientRole):
			return response.Forbidden(c, "Insufficient permissions")
		case errors.Is(err, services.ErrBackupFileNotFound):
			return response.NotFound(c, "Backup file not found")
		case errors.Is(err, services.ErrBackupFileMalformed):
			return response.BadRequest(c, "Invalid backup file")
		default:
			return response.InternalServerError(c, "Restore failed")
		}
	}

	data := fiber.Map{"restored": counts}
	if warning != "" {
		return response.SuccessWithWarning(c, "Restore completed", warning, data)
	}
	return response.Success(c, "Restore completed", data)
}
