package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk/support-engine/internal/domain"
)

// MemoryTicketStore is an in-memory TicketStore used in tests and when no
// Postgres DSN is configured.
type MemoryTicketStore struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
	clock   func() time.Time
}

// NewMemoryTicketStore constructs an empty in-memory store.
func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{
		tickets: make(map[string]domain.Ticket),
		clock:   time.Now,
	}
}

// SetClock overrides the time source; intended for tests.
func (s *MemoryTicketStore) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

func (s *MemoryTicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := s.clock()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (s *MemoryTicketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := cloneTicket(ticket)
	return &copied, nil
}

func (s *MemoryTicketStore) Update(ctx context.Context, ticket *domain.Ticket, expectedUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	if !existing.UpdatedAt.Equal(expectedUpdatedAt) {
		return ErrStaleTicket
	}
	ticket.UpdatedAt = s.clock()
	s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (s *MemoryTicketStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[id]; !ok {
		return ErrNotFound
	}
	delete(s.tickets, id)
	return nil
}

func (s *MemoryTicketStore) MarkEscalated(ctx context.Context, id, team string, level int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return false, ErrNotFound
	}
	if ticket.Escalated {
		return false, nil
	}
	ticket.Escalated = true
	ticket.EscalationLevel = level
	ticket.AssignedTo = &team
	ticket.UpdatedAt = s.clock()
	s.tickets[id] = ticket
	return true, nil
}

func (s *MemoryTicketStore) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if !matchesFilter(ticket, filter) {
			continue
		}
		result = append(result, cloneTicket(ticket))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func matchesFilter(ticket domain.Ticket, filter TicketFilter) bool {
	if filter.OrganizationID != nil && ticket.OrganizationID != *filter.OrganizationID {
		return false
	}
	if filter.UserID != nil && ticket.UserID != *filter.UserID {
		return false
	}
	if filter.AssignedTo != nil {
		if ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo {
			return false
		}
	}
	if filter.Status != nil && ticket.Status != *filter.Status {
		return false
	}
	if filter.Priority != nil && ticket.Priority != *filter.Priority {
		return false
	}
	if filter.Subject != nil {
		needle := strings.ToLower(strings.TrimSpace(*filter.Subject))
		if needle != "" && !strings.Contains(strings.ToLower(ticket.Subject), needle) {
			return false
		}
	}
	if filter.Tag != nil && !ticket.HasTag(*filter.Tag) {
		return false
	}
	if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	if filter.DeletionRequested != nil && ticket.DeletionRequested != *filter.DeletionRequested {
		return false
	}
	return true
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.Messages = append([]string(nil), t.Messages...)
	t.Tags = append([]string(nil), t.Tags...)
	return t
}

// MemoryAuditLogStore records audit events in memory.
type MemoryAuditLogStore struct {
	mu     sync.Mutex
	events []domain.AuditLogEvent
}

// NewMemoryAuditLogStore constructs an empty audit store.
func NewMemoryAuditLogStore() *MemoryAuditLogStore {
	return &MemoryAuditLogStore{}
}

func (s *MemoryAuditLogStore) Append(ctx context.Context, event *domain.AuditLogEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	s.events = append(s.events, *event)
	return nil
}

// Events returns a snapshot of recorded events.
func (s *MemoryAuditLogStore) Events() []domain.AuditLogEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditLogEvent(nil), s.events...)
}

// MemoryInAppNotificationStore records in-app notifications in memory.
type MemoryInAppNotificationStore struct {
	mu    sync.Mutex
	items []domain.InAppNotification
}

// NewMemoryInAppNotificationStore constructs an empty notification store.
func NewMemoryInAppNotificationStore() *MemoryInAppNotificationStore {
	return &MemoryInAppNotificationStore{}
}

func (s *MemoryInAppNotificationStore) Append(ctx context.Context, notification *domain.InAppNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	s.items = append(s.items, *notification)
	return nil
}

func (s *MemoryInAppNotificationStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.InAppNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.InAppNotification
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].UserID != userID {
			continue
		}
		result = append(result, s.items[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}
