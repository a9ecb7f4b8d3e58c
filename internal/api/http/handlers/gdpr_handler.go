package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/support-engine/internal/api/dto"
	"github.com/opsdesk/support-engine/internal/auth"
	"github.com/opsdesk/support-engine/internal/service"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

// GDPRHandler exposes the confirmed-deletion workflow.
type GDPRHandler struct {
	gdpr *service.GDPRService
}

// NewGDPRHandler constructs the handler.
func NewGDPRHandler(gdpr *service.GDPRService) *GDPRHandler {
	return &GDPRHandler{gdpr: gdpr}
}

// RequestDeletion POST /gdpr/deletion-request.
func (h *GDPRHandler) RequestDeletion(c *fiber.Ctx) error {
	caller, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	flagged, err := h.gdpr.RequestDeletion(c.UserContext(), caller)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"flagged": flagged}})
}

// ListDeletionRequests GET /gdpr/deletion-requests.
func (h *GDPRHandler) ListDeletionRequests(c *fiber.Ctx) error {
	caller, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tickets, err := h.gdpr.ListDeletionRequests(c.UserContext(), caller)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTickets(tickets)})
}

// ConfirmDeletion POST /gdpr/deletion-confirm.
func (h *GDPRHandler) ConfirmDeletion(c *fiber.Ctx) error {
	caller, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.GDPRConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	deleted, err := h.gdpr.ConfirmDeletion(c.UserContext(), caller, req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": deleted}})
}
