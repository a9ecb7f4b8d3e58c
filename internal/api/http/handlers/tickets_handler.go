package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/support-engine/internal/api/dto"
	"github.com/opsdesk/support-engine/internal/auth"
	"github.com/opsdesk/support-engine/internal/domain"
	"github.com/opsdesk/support-engine/internal/service"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle operations.
type TicketsHandler struct {
	engine *service.LifecycleEngine
	merge  *service.DuplicateMergeService
}

// NewTicketsHandler constructs the handler.
func NewTicketsHandler(engine *service.LifecycleEngine, merge *service.DuplicateMergeService) *TicketsHandler {
	return &TicketsHandler{engine: engine, merge: merge}
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	caller, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	input, err := parseListQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.engine.ListTickets(c.UserContext(), caller, input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTickets(tickets)})
}

// Mutate POST /tickets. Creation for users; bulk action, duplicate check,
// or merge for admins, disambiguated by payload shape.
func (h *TicketsHandler) Mutate(c *fiber.Ctx) error {
	caller, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TicketMutationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	switch {
	case req.Action != "":
		return h.bulkAction(c, caller, req)
	case req.DuplicateCheck:
		return h.duplicateCheck(c, caller, req)
	case req.MergeTickets:
		return h.mergeTickets(c, caller, req)
	default:
		return h.create(c, caller, req)
	}
}

func (h *TicketsHandler) create(c *fiber.Ctx, caller domain.AuthenticatedUser, req dto.TicketMutationRequest) error {
	ticket, err := h.engine.CreateTicket(c.UserContext(), caller, service.TicketCreateInput{
		Subject:  req.Subject,
		Message:  req.Message,
		Priority: req.Priority,
		Tags:     req.Tags,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

func (h *TicketsHandler) bulkAction(c *fiber.Ctx, caller domain.AuthenticatedUser, req dto.TicketMutationRequest) error {
	if len(req.TicketIDs) == 0 {
		return apperrors.NewValidationError("ticketIds required", nil)
	}
	processed, err := h.engine.BulkAction(c.UserContext(), caller, service.BulkActionType(req.Action), req.TicketIDs, req.AssignedTo)
	if err != nil {
		return err
	}
	return c.JSON(dto.BulkActionResponse{Results: processed})
}

func (h *TicketsHandler) duplicateCheck(c *fiber.Ctx, caller domain.AuthenticatedUser, req dto.TicketMutationRequest) error {
	duplicates, err := h.merge.FindDuplicates(c.UserContext(), caller, req.Subject, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTickets(duplicates)})
}

func (h *TicketsHandler) mergeTickets(c *fiber.Ctx, caller domain.AuthenticatedUser, req dto.TicketMutationRequest) error {
	if len(req.TicketIDs) != 2 {
		return apperrors.NewValidationError("mergeTickets requires exactly [primary, duplicate]", nil)
	}
	primary, err := h.merge.Merge(c.UserContext(), caller, req.TicketIDs[0], req.TicketIDs[1])
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(primary)})
}

// Patch PATCH /tickets. Dispatches to the engine operation matching the
// fields present in the payload.
func (h *TicketsHandler) Patch(c *fiber.Ctx) error {
	caller, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TicketPatchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TicketID == "" {
		return apperrors.NewValidationError("ticketId required", nil)
	}

	ctx := c.UserContext()
	var (
		ticket *domain.Ticket
		err    error
	)
	switch {
	case req.SatisfactionRating != nil:
		comment := ""
		if req.SatisfactionComment != nil {
			comment = *req.SatisfactionComment
		}
		ticket, err = h.engine.SubmitSatisfaction(ctx, caller, req.TicketID, *req.SatisfactionRating, comment)
	case req.ConfirmAIResolution:
		ticket, err = h.engine.ConfirmAIResolution(ctx, caller, req.TicketID)
	case req.ConvertToForum:
		categoryID := ""
		if req.CategoryID != nil {
			categoryID = *req.CategoryID
		}
		ticket, err = h.engine.ConvertToForum(ctx, caller, req.TicketID, categoryID)
	default:
		ticket, err = h.engine.UpdateTicket(ctx, caller, req.TicketID, service.TicketUpdateInput{
			Status:          req.Status,
			Priority:        req.Priority,
			Tags:            req.Tags,
			AssignedTo:      req.AssignedTo,
			InternalNotes:   req.InternalNotes,
			EscalationLevel: req.EscalationLevel,
		})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// Delete DELETE /tickets?ticketId=.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	caller, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID := c.Query("ticketId")
	if ticketID == "" {
		return apperrors.NewValidationError("ticketId required", nil)
	}
	if err := h.engine.DeleteTicket(c.UserContext(), caller, ticketID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": ticketID}})
}

func parseListQuery(c *fiber.Ctx) (service.TicketListInput, error) {
	input := service.TicketListInput{
		Limit:  parseIntQuery(c, "limit", 100),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if v := c.Query("status"); v != "" {
		status := domain.TicketStatus(strings.ToUpper(v))
		input.Status = &status
	}
	if v := c.Query("priority"); v != "" {
		priority := domain.TicketPriority(strings.ToUpper(v))
		input.Priority = &priority
	}
	if v := c.Query("subject"); v != "" {
		input.Subject = &v
	}
	if v := c.Query("userId"); v != "" {
		input.UserID = &v
	}
	if v := c.Query("assignedTo"); v != "" {
		input.AssignedTo = &v
	}
	if v := c.Query("tag"); v != "" {
		input.Tag = &v
	}
	if v := c.Query("dateFrom"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return input, apperrors.NewValidationError("invalid dateFrom", map[string]any{"dateFrom": v})
		}
		input.CreatedFrom = &from
	}
	if v := c.Query("dateTo"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return input, apperrors.NewValidationError("invalid dateTo", map[string]any{"dateTo": v})
		}
		input.CreatedTo = &to
	}
	return input, nil
}

func parseIntQuery(c *fiber.Ctx, key string, fallback int) int {
	val := c.Query(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
