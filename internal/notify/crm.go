package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opsdesk/support-engine/internal/config"
)

// SinkCRM is the CRM webhook sink name.
const SinkCRM = "crm"

type crmSink struct {
	url    string
	client *http.Client
}

// NewCRMSink builds the CRM webhook sink.
func NewCRMSink(cfg config.NotifyConfig) Sink {
	return &crmSink{
		url:    cfg.CRMWebhookURL,
		client: &http.Client{Timeout: cfg.SinkTimeout()},
	}
}

func (s *crmSink) Name() string { return SinkCRM }

type crmPayload struct {
	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"`
	TicketID  string    `json:"ticket_id"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	Priority  string    `json:"priority"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *crmSink) Send(ctx context.Context, event Event) error {
	if s.url == "" {
		return nil
	}
	body, err := json.Marshal(crmPayload{
		EventID:   event.ID,
		Kind:      string(event.Kind),
		TicketID:  event.TicketID,
		Subject:   event.Subject,
		Status:    string(event.Status),
		Priority:  string(event.Priority),
		Summary:   event.Summary,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("crm webhook returned status %d", resp.StatusCode)
	}
	return nil
}
