package notify

import (
	"context"

	"github.com/opsdesk/support-engine/internal/domain"
	"github.com/opsdesk/support-engine/internal/repository"
)

// SinkInApp is the in-app notification sink name.
const SinkInApp = "inapp"

type inAppSink struct {
	store repository.InAppNotificationStore
}

// NewInAppSink builds the sink that persists notifications for in-product
// display.
func NewInAppSink(store repository.InAppNotificationStore) Sink {
	return &inAppSink{store: store}
}

func (s *inAppSink) Name() string { return SinkInApp }

func (s *inAppSink) Send(ctx context.Context, event Event) error {
	if event.OwnerID == "" {
		return nil
	}
	return s.store.Append(ctx, &domain.InAppNotification{
		UserID:   event.OwnerID,
		TicketID: event.TicketID,
		Title:    event.Subject,
		Body:     event.Summary,
	})
}
