package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsdesk/support-engine/internal/advisor"
	"github.com/opsdesk/support-engine/internal/config"
	"github.com/opsdesk/support-engine/internal/domain"
	"github.com/opsdesk/support-engine/internal/forum"
	"github.com/opsdesk/support-engine/internal/notify"
	"github.com/opsdesk/support-engine/internal/repository"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

type fakeAdvisor struct {
	suggestion *advisor.Suggestion
	err        error
}

func (f *fakeAdvisor) Suggest(ctx context.Context, subject, message string) (*advisor.Suggestion, error) {
	return f.suggestion, f.err
}

type fakeForum struct {
	category forum.Category
	post     forum.Post
	err      error
}

func (f *fakeForum) EnsureCategory(ctx context.Context, categoryID string) (*forum.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &f.category, nil
}

func (f *fakeForum) CreatePost(ctx context.Context, categoryID, title, body string) (*forum.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &f.post, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, event notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingDispatcher) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

func (r *recordingDispatcher) Kinds() []notify.Kind {
	kinds := make([]notify.Kind, 0)
	for _, event := range r.Events() {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

type engineFixture struct {
	engine     *LifecycleEngine
	store      *repository.MemoryTicketStore
	audit      *repository.MemoryAuditLogStore
	dispatcher *recordingDispatcher
	advisor    *fakeAdvisor
	forum      *fakeForum
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	store := repository.NewMemoryTicketStore()
	auditStore := repository.NewMemoryAuditLogStore()
	dispatcher := &recordingDispatcher{}
	adv := &fakeAdvisor{err: errors.New("advisor offline")}
	frm := &fakeForum{
		category: forum.Category{ID: "cat-1", Name: "Support"},
		post:     forum.Post{ID: "post-1", URL: "https://forum.example.com/t/post-1"},
	}
	logger := zap.NewNop()
	engine := NewLifecycleEngine(LifecycleDependencies{
		Store:      store,
		Advisor:    adv,
		Forum:      frm,
		Dispatcher: dispatcher,
		Audit:      NewAuditService(auditStore, logger),
		Logger:     logger,
		AdvisorCfg: config.AdvisorConfig{
			RetrievalEscalationThreshold:   0.65,
			SuppressionConfidenceThreshold: 0.8,
		},
	})
	return &engineFixture{
		engine:     engine,
		store:      store,
		audit:      auditStore,
		dispatcher: dispatcher,
		advisor:    adv,
		forum:      frm,
	}
}

var (
	testUser = domain.AuthenticatedUser{
		ID:             "user-1",
		Role:           domain.RoleUser,
		OrganizationID: "org-1",
		Email:          "user@example.com",
		DisplayName:    "Test User",
	}
	testAdmin = domain.AuthenticatedUser{
		ID:             "admin-1",
		Role:           domain.RoleAdmin,
		OrganizationID: "org-1",
		Email:          "admin@example.com",
		DisplayName:    "Test Admin",
	}
)

func createInput() TicketCreateInput {
	return TicketCreateInput{
		Subject:  "Cannot log in",
		Message:  "The login page rejects my password.",
		Priority: domain.TicketPriorityHigh,
		Tags:     []string{"auth", "login"},
	}
}

func TestCreateTicketRequiresOrganization(t *testing.T) {
	fx := newEngineFixture(t)

	orphan := testUser
	orphan.OrganizationID = ""
	_, err := fx.engine.CreateTicket(context.Background(), orphan, createInput())
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestCreateTicketValidatesPayload(t *testing.T) {
	fx := newEngineFixture(t)

	_, err := fx.engine.CreateTicket(context.Background(), testUser, TicketCreateInput{Subject: " ", Message: "m"})
	require.Error(t, err)

	_, err = fx.engine.CreateTicket(context.Background(), testUser, TicketCreateInput{
		Subject: "s", Message: "m", Priority: "EXTREME",
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestCreateTicketSurvivesAdvisorFailure(t *testing.T) {
	fx := newEngineFixture(t)
	fx.advisor.err = errors.New("advisor timeout")

	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.False(t, ticket.AISuggestionProvided)
	assert.Equal(t, []string{"The login page rejects my password."}, ticket.Messages)

	require.Len(t, fx.dispatcher.Events(), 1)
	assert.Equal(t, notify.KindTicketCreated, fx.dispatcher.Events()[0].Kind)
}

func TestCreateTicketAttachesSuggestionAndStaysOpen(t *testing.T) {
	fx := newEngineFixture(t)
	fx.advisor.err = nil
	fx.advisor.suggestion = &advisor.Suggestion{
		Answer:       "Reset your password from the account page.",
		Confidence:   0.7,
		AutoAnswered: true,
	}

	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)
	assert.True(t, ticket.AISuggestionProvided)
	assert.Equal(t, 0.7, ticket.AISuggestionConfidence)
	// A suggestion never closes the ticket on its own.
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	// 0.7 is below the suppression threshold: admins are still notified.
	assert.Len(t, fx.dispatcher.Events(), 1)
}

func TestCreateTicketCarriesHumanReviewFlag(t *testing.T) {
	fx := newEngineFixture(t)
	fx.advisor.err = nil
	fx.advisor.suggestion = &advisor.Suggestion{
		Answer:         "Reset your password from the account page.",
		Confidence:     0.7,
		AutoAnswered:   true,
		RetrievalScore: 0.45,
		ShouldEscalate: true,
	}

	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)
	assert.True(t, ticket.AINeedsHumanReview)
	// The review flag never moves the ticket out of Open.
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)

	stored, err := fx.store.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.AINeedsHumanReview)

	fx.advisor.suggestion.ShouldEscalate = false
	ticket, err = fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)
	assert.False(t, ticket.AINeedsHumanReview)
}

func TestCreateTicketSuppressesNotificationAboveThreshold(t *testing.T) {
	fx := newEngineFixture(t)
	fx.advisor.err = nil
	fx.advisor.suggestion = &advisor.Suggestion{
		Answer:       "Reset your password from the account page.",
		Confidence:   0.92,
		AutoAnswered: true,
	}

	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)
	assert.True(t, ticket.AISuggestionProvided)
	assert.Empty(t, fx.dispatcher.Events())

	// Suppression requires an auto-answer, not just high confidence.
	fx.advisor.suggestion.AutoAnswered = false
	_, err = fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)
	assert.Len(t, fx.dispatcher.Events(), 1)
}

func TestCreateTicketDefaultsPriorityAndDedupesTags(t *testing.T) {
	fx := newEngineFixture(t)

	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, TicketCreateInput{
		Subject: "Billing question",
		Message: "Wrong invoice amount",
		Tags:    []string{"billing", "billing", " ", "invoice"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, []string{"billing", "invoice"}, ticket.Tags)
	assert.Equal(t, testUser.Email, ticket.UserEmail)
}

func TestUpdateTicketRequiresAdmin(t *testing.T) {
	fx := newEngineFixture(t)
	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	pending := domain.TicketStatusPending
	_, err = fx.engine.UpdateTicket(context.Background(), testUser, ticket.ID, TicketUpdateInput{Status: &pending})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}

func TestUpdateTicketTransitions(t *testing.T) {
	fx := newEngineFixture(t)
	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	pending := domain.TicketStatusPending
	updated, err := fx.engine.UpdateTicket(context.Background(), testAdmin, ticket.ID, TicketUpdateInput{Status: &pending})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPending, updated.Status)
	assert.NotNil(t, updated.FirstResponseAt)

	closed := domain.TicketStatusClosed
	updated, err = fx.engine.UpdateTicket(context.Background(), testAdmin, ticket.ID, TicketUpdateInput{Status: &closed})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, updated.Status)
	require.NotNil(t, updated.ClosedAt)

	// Closed is terminal: no way back.
	open := domain.TicketStatusOpen
	_, err = fx.engine.UpdateTicket(context.Background(), testAdmin, ticket.ID, TicketUpdateInput{Status: &open})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestUpdateTicketCloseNotifiesOwner(t *testing.T) {
	fx := newEngineFixture(t)
	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	closed := domain.TicketStatusClosed
	_, err = fx.engine.UpdateTicket(context.Background(), testAdmin, ticket.ID, TicketUpdateInput{Status: &closed})
	require.NoError(t, err)

	events := fx.dispatcher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, notify.KindTicketClosed, events[1].Kind)
	assert.Equal(t, testUser.Email, events[1].RecipientEmail)
	assert.Equal(t, testUser.ID, events[1].OwnerID)
}

func TestUpdateTicketMergedCannotBeAssigned(t *testing.T) {
	fx := newEngineFixture(t)
	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	stored, err := fx.store.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	primaryID := "primary-1"
	stored.MergedInto = &primaryID
	require.NoError(t, fx.store.Update(context.Background(), stored, stored.UpdatedAt))

	agent := "agent-9"
	_, err = fx.engine.UpdateTicket(context.Background(), testAdmin, ticket.ID, TicketUpdateInput{AssignedTo: &agent})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestConfirmAIResolution(t *testing.T) {
	fx := newEngineFixture(t)
	fx.advisor.err = nil
	fx.advisor.suggestion = &advisor.Suggestion{Answer: "Try a reset", Confidence: 0.6}

	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	_, err = fx.engine.ConfirmAIResolution(context.Background(), testAdmin, ticket.ID)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	confirmed, err := fx.engine.ConfirmAIResolution(context.Background(), testUser, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, confirmed.Status)
	assert.True(t, confirmed.AIResolutionConfirmedByUser)
	require.NotNil(t, confirmed.ClosedAt)

	// Already closed; confirming again conflicts.
	_, err = fx.engine.ConfirmAIResolution(context.Background(), testUser, ticket.ID)
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestConfirmAIResolutionRequiresSuggestion(t *testing.T) {
	fx := newEngineFixture(t)
	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	_, err = fx.engine.ConfirmAIResolution(context.Background(), testUser, ticket.ID)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestSubmitSatisfaction(t *testing.T) {
	fx := newEngineFixture(t)
	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	_, err = fx.engine.SubmitSatisfaction(context.Background(), testUser, ticket.ID, 6, "")
	require.Error(t, err)

	// Only closed tickets can be rated.
	_, err = fx.engine.SubmitSatisfaction(context.Background(), testUser, ticket.ID, 4, "")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	closed := domain.TicketStatusClosed
	_, err = fx.engine.UpdateTicket(context.Background(), testAdmin, ticket.ID, TicketUpdateInput{Status: &closed})
	require.NoError(t, err)

	_, err = fx.engine.SubmitSatisfaction(context.Background(), testAdmin, ticket.ID, 4, "")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	rated, err := fx.engine.SubmitSatisfaction(context.Background(), testUser, ticket.ID, 4, "resolved quickly")
	require.NoError(t, err)
	require.NotNil(t, rated.SatisfactionRating)
	assert.Equal(t, 4, *rated.SatisfactionRating)
	require.NotNil(t, rated.SatisfactionComment)
	assert.Equal(t, "resolved quickly", *rated.SatisfactionComment)
}

func TestConvertToForum(t *testing.T) {
	fx := newEngineFixture(t)
	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	_, err = fx.engine.ConvertToForum(context.Background(), testUser, ticket.ID, "cat-1")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	_, err = fx.engine.ConvertToForum(context.Background(), testAdmin, ticket.ID, "")
	require.Error(t, err)

	converted, err := fx.engine.ConvertToForum(context.Background(), testAdmin, ticket.ID, "cat-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusConverted, converted.Status)
	assert.True(t, converted.ConvertedToForum)
	require.NotNil(t, converted.ForumPostID)
	assert.Equal(t, "post-1", *converted.ForumPostID)

	events := fx.dispatcher.Events()
	last := events[len(events)-1]
	assert.Equal(t, notify.KindTicketConverted, last.Kind)
	assert.Equal(t, "https://forum.example.com/t/post-1", last.ForumURL)

	// Converted is terminal.
	_, err = fx.engine.ConvertToForum(context.Background(), testAdmin, ticket.ID, "cat-1")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestConvertToForumDependencyFailure(t *testing.T) {
	fx := newEngineFixture(t)
	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	fx.forum.err = apperrors.NewDependencyError("forum service", errors.New("down"))
	_, err = fx.engine.ConvertToForum(context.Background(), testAdmin, ticket.ID, "cat-1")
	require.Error(t, err)

	// The ticket is untouched when the forum call fails.
	stored, err := fx.store.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.False(t, stored.ConvertedToForum)
}

func TestBulkCloseSkipsMissingTickets(t *testing.T) {
	fx := newEngineFixture(t)

	first, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)
	third, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	processed, err := fx.engine.BulkAction(context.Background(), testAdmin, BulkClose,
		[]string{first.ID, "missing-ticket", third.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, third.ID}, processed)

	for _, id := range processed {
		stored, err := fx.store.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusClosed, stored.Status)
	}
}

func TestBulkCloseSkipsTerminalTickets(t *testing.T) {
	fx := newEngineFixture(t)
	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	closed := domain.TicketStatusClosed
	_, err = fx.engine.UpdateTicket(context.Background(), testAdmin, ticket.ID, TicketUpdateInput{Status: &closed})
	require.NoError(t, err)

	processed, err := fx.engine.BulkAction(context.Background(), testAdmin, BulkClose, []string{ticket.ID}, nil)
	require.NoError(t, err)
	assert.Empty(t, processed)
}

func TestBulkAssign(t *testing.T) {
	fx := newEngineFixture(t)
	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	_, err = fx.engine.BulkAction(context.Background(), testAdmin, BulkAssign, []string{ticket.ID}, nil)
	require.Error(t, err)

	agent := "agent-7"
	processed, err := fx.engine.BulkAction(context.Background(), testAdmin, BulkAssign, []string{ticket.ID}, &agent)
	require.NoError(t, err)
	assert.Equal(t, []string{ticket.ID}, processed)

	stored, err := fx.store.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, "agent-7", *stored.AssignedTo)
}

func TestBulkDelete(t *testing.T) {
	fx := newEngineFixture(t)
	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	processed, err := fx.engine.BulkAction(context.Background(), testAdmin, BulkDelete, []string{ticket.ID, "ghost"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{ticket.ID}, processed)

	_, err = fx.store.GetByID(context.Background(), ticket.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetTicketEnforcesOwnership(t *testing.T) {
	fx := newEngineFixture(t)
	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	stranger := domain.AuthenticatedUser{ID: "user-2", Role: domain.RoleUser, OrganizationID: "org-1"}
	_, err = fx.engine.GetTicket(context.Background(), stranger, ticket.ID)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	got, err := fx.engine.GetTicket(context.Background(), testAdmin, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)
}

func TestListTicketsScopesNonAdminToOwnTickets(t *testing.T) {
	fx := newEngineFixture(t)

	_, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)
	other := domain.AuthenticatedUser{ID: "user-2", Role: domain.RoleUser, OrganizationID: "org-1"}
	_, err = fx.engine.CreateTicket(context.Background(), other, createInput())
	require.NoError(t, err)

	mine, err := fx.engine.ListTickets(context.Background(), testUser, TicketListInput{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, testUser.ID, mine[0].UserID)

	all, err := fx.engine.ListTickets(context.Background(), testAdmin, TicketListInput{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateTicketStaleWriteConflicts(t *testing.T) {
	fx := newEngineFixture(t)
	ticket, err := fx.engine.CreateTicket(context.Background(), testUser, createInput())
	require.NoError(t, err)

	stored, err := fx.store.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	err = fx.store.Update(context.Background(), stored, stored.UpdatedAt.Add(-time.Second))
	assert.ErrorIs(t, err, repository.ErrStaleTicket)
}
