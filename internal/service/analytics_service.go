package service

import (
	"context"

	"github.com/opsdesk/support-engine/internal/domain"
	"github.com/opsdesk/support-engine/internal/repository"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

// TicketAnalytics aggregates ticket counts and timing statistics.
type TicketAnalytics struct {
	Total                   int                           `json:"total"`
	ByStatus                map[domain.TicketStatus]int   `json:"by_status"`
	ByPriority              map[domain.TicketPriority]int `json:"by_priority"`
	ByTag                   map[string]int                `json:"by_tag"`
	ByAssignee              map[string]int                `json:"by_assignee"`
	Escalated               int                           `json:"escalated"`
	AvgFirstResponseMinutes float64                       `json:"avg_first_response_minutes"`
	AvgCloseMinutes         float64                       `json:"avg_close_minutes"`
	SatisfactionHistogram   map[int]int                   `json:"satisfaction_histogram"`
}

// AnalyticsService computes aggregates over the ticket store.
type AnalyticsService struct {
	store repository.TicketStore
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(store repository.TicketStore) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// Compute builds the analytics snapshot. Admin only.
func (a *AnalyticsService) Compute(ctx context.Context, admin domain.AuthenticatedUser) (*TicketAnalytics, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	tickets, err := a.store.List(ctx, repository.TicketFilter{Limit: 10000})
	if err != nil {
		return nil, apperrors.NewDependencyError("ticket store", err)
	}

	result := &TicketAnalytics{
		ByStatus:              make(map[domain.TicketStatus]int),
		ByPriority:            make(map[domain.TicketPriority]int),
		ByTag:                 make(map[string]int),
		ByAssignee:            make(map[string]int),
		SatisfactionHistogram: make(map[int]int),
	}

	var responseMinutes, closeMinutes float64
	var responded, closed int
	for _, ticket := range tickets {
		result.Total++
		result.ByStatus[ticket.Status]++
		result.ByPriority[ticket.Priority]++
		for _, tag := range ticket.Tags {
			result.ByTag[tag]++
		}
		if ticket.AssignedTo != nil {
			result.ByAssignee[*ticket.AssignedTo]++
		}
		if ticket.Escalated {
			result.Escalated++
		}
		if ticket.FirstResponseAt != nil {
			responseMinutes += ticket.FirstResponseAt.Sub(ticket.CreatedAt).Minutes()
			responded++
		}
		if ticket.ClosedAt != nil {
			closeMinutes += ticket.ClosedAt.Sub(ticket.CreatedAt).Minutes()
			closed++
		}
		if ticket.SatisfactionRating != nil {
			result.SatisfactionHistogram[*ticket.SatisfactionRating]++
		}
	}
	if responded > 0 {
		result.AvgFirstResponseMinutes = responseMinutes / float64(responded)
	}
	if closed > 0 {
		result.AvgCloseMinutes = closeMinutes / float64(closed)
	}
	return result, nil
}
