package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/support-engine/internal/auth"
	"github.com/opsdesk/support-engine/internal/service"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

// AnalyticsHandler serves aggregate ticket statistics.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs the handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Analytics GET /tickets/analytics.
func (h *AnalyticsHandler) Analytics(c *fiber.Ctx) error {
	caller, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	result, err := h.analytics.Compute(c.UserContext(), caller)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
