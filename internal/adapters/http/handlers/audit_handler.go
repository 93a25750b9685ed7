package handlers

import (
	"strconv"

	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/services"
	"easymoney-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuditHandler handles audit ledger endpoints
type AuditHandler struct {
	auditService *services.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// List lists audit entries
// @Summary List audit logs
// @Description List audit entries newest first, with optional filters
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param entity_type query string false "Filter by entity type"
// @Param entity_id query string false "Filter by entity id"
// @Param actor_id query string false "Filter by actor"
// @Param limit query int false "Max entries" default(100)
// @Success 200 {object} response.Response
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	logs, err := h.auditService.List(c.Context(), repositories.ListFilter{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		ActorID:    c.Query("actor_id"),
		Limit:      limit,
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to list audit logs")
	}
	return response.Success(c, "", fiber.Map{"audit_logs": logs})
}

// Verify checks the whole hash chain
// @Summary Verify ledger integrity
// @Description Recompute every hash in the ledger and report mismatches (Admin only)
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /audit-logs/verify-integrity [get]
func (h *AuditHandler) Verify(c *fiber.Ctx) error {
	result, err := h.auditService.Verify(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to verify audit chain")
	}
	return response.Success(c, "", fiber.Map{"integrity": result})
}
