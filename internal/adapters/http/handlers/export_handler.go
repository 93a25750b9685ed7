package handlers

import (
	"errors"

	"easymoney-loans/internal/adapters/http/middleware"
	"easymoney-loans/internal/core/services"
	"easymoney-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ExportHandler handles spreadsheet export endpoints
type ExportHandler struct {
	exportService *services.ExportService
}

// NewExportHandler creates a new export handler
func NewExportHandler(exportService *services.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

// ExportRequest represents an export request
type ExportRequest struct {
	ExportType string `json:"export_type"`
	SaveToPath bool   `json:"save_to_path,omitempty"`
}

// Export renders the requested workbook
// @Summary Export data
// @Description Export customers, loans and/or payments to xlsx (Manager/Admin only)
// @Tags Export
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ExportRequest true "Export options"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /export [post]
func (h *ExportHandler) Export(c *fiber.Ctx) error {
	var req ExportRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, warning, err := h.exportService.Export(c.Context(), services.ExportInput{
		ExportType: req.ExportType,
		SaveToPath: req.SaveToPath,
	}, middleware.Actor(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientRole):
			return response.Forbidden(c, "Insufficient permissions")
		case errors.Is(err, services.ErrInvalidExportType):
			return response.BadRequest(c, "Export type must be customers, loans, payments or all")
		case errors.Is(err, services.ErrExportFolderNotSet):
			return response.BadRequest(c, "Export folder path not configured. Please configure in Admin Settings.")
		case errors.Is(err, services.ErrExportFolderMissing):
			return response.BadRequest(c, "Export folder does not exist")
		default:
			return response.InternalServerError(c, "Failed to export data")
		}
	}

	if warning != "" {
		return response.SuccessWithWarning(c, "Export generated", warning, fiber.Map{"export": result})
	}
	return response.Success(c, "Export generated", fiber.Map{"export": result})
}
