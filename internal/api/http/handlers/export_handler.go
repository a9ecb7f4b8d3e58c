package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/support-engine/internal/auth"
	"github.com/opsdesk/support-engine/internal/domain"
	"github.com/opsdesk/support-engine/internal/repository"
	"github.com/opsdesk/support-engine/internal/service"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

// ExportHandler serves admin ticket exports.
type ExportHandler struct {
	export *service.ExportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(export *service.ExportService) *ExportHandler {
	return &ExportHandler{export: export}
}

// Export GET /tickets/export?format=csv|pdf.
func (h *ExportHandler) Export(c *fiber.Ctx) error {
	caller, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	format := service.ExportFormat(strings.ToLower(c.Query("format", "csv")))
	filter := parseExportFilter(c)

	data, contentType, err := h.export.Export(c.UserContext(), caller, format, filter)
	if err != nil {
		return err
	}

	filename := "tickets." + string(format)
	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(data)
}

func parseExportFilter(c *fiber.Ctx) repository.TicketFilter {
	var filter repository.TicketFilter
	if v := c.Query("status"); v != "" {
		status := domain.TicketStatus(strings.ToUpper(v))
		filter.Status = &status
	}
	if v := c.Query("priority"); v != "" {
		priority := domain.TicketPriority(strings.ToUpper(v))
		filter.Priority = &priority
	}
	if v := c.Query("userId"); v != "" {
		filter.UserID = &v
	}
	if v := c.Query("assignedTo"); v != "" {
		filter.AssignedTo = &v
	}
	if v := c.Query("tag"); v != "" {
		filter.Tag = &v
	}
	if v := c.Query("dateFrom"); v != "" {
		if from, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedFrom = &from
		}
	}
	if v := c.Query("dateTo"); v != "" {
		if to, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedTo = &to
		}
	}
	return filter
}
