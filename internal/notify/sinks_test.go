package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/support-engine/internal/config"
	"github.com/opsdesk/support-engine/internal/domain"
	"github.com/opsdesk/support-engine/internal/repository"
)

func TestCRMSinkPostsPayload(t *testing.T) {
	var received crmPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sink := NewCRMSink(config.NotifyConfig{CRMWebhookURL: server.URL, SinkTimeoutSeconds: 2})
	err := sink.Send(context.Background(), Event{
		ID:       "evt-1",
		Kind:     KindTicketEscalated,
		TicketID: "t1",
		Subject:  "Stuck ticket",
		Status:   domain.TicketStatusOpen,
		Priority: domain.TicketPriorityHigh,
		Summary:  "SLA breached",
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", received.EventID)
	assert.Equal(t, "ticket_escalated", received.Kind)
	assert.Equal(t, "t1", received.TicketID)
}

func TestCRMSinkErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sink := NewCRMSink(config.NotifyConfig{CRMWebhookURL: server.URL, SinkTimeoutSeconds: 2})
	err := sink.Send(context.Background(), Event{Kind: KindTicketCreated, TicketID: "t1"})
	assert.Error(t, err)
}

func TestCRMSinkNoopWithoutURL(t *testing.T) {
	sink := NewCRMSink(config.NotifyConfig{})
	assert.NoError(t, sink.Send(context.Background(), Event{Kind: KindTicketCreated}))
}

func TestEmailSinkSkipsWithoutRecipient(t *testing.T) {
	sink := NewEmailSink(config.NotifyConfig{SMTPHost: "localhost", SMTPPort: "25"})
	assert.NoError(t, sink.Send(context.Background(), Event{Kind: KindTicketClosed}))
}

func TestInAppSinkPersistsForOwner(t *testing.T) {
	store := repository.NewMemoryInAppNotificationStore()
	sink := NewInAppSink(store)

	err := sink.Send(context.Background(), Event{
		Kind:     KindTicketClosed,
		TicketID: "t1",
		Subject:  "Login broken",
		OwnerID:  "user-1",
		Summary:  "Your ticket was closed",
	})
	require.NoError(t, err)

	items, err := store.ListByUser(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "t1", items[0].TicketID)
	assert.Equal(t, "Login broken", items[0].Title)
}

func TestInAppSinkSkipsWithoutOwner(t *testing.T) {
	store := repository.NewMemoryInAppNotificationStore()
	sink := NewInAppSink(store)

	require.NoError(t, sink.Send(context.Background(), Event{Kind: KindTicketEscalated, TicketID: "t1"}))
	items, err := store.ListByUser(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}
