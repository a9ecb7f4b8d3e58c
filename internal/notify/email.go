package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/opsdesk/support-engine/internal/config"
)

// SinkEmail is the transactional email sink name.
const SinkEmail = "email"

type emailSink struct {
	cfg config.NotifyConfig
}

// NewEmailSink builds the SMTP email sink.
func NewEmailSink(cfg config.NotifyConfig) Sink {
	return &emailSink{cfg: cfg}
}

func (s *emailSink) Name() string { return SinkEmail }

func (s *emailSink) Send(ctx context.Context, event Event) error {
	// Events without a recipient are admin-channel only.
	if event.RecipientEmail == "" {
		return nil
	}
	if s.cfg.SMTPHost == "" {
		return nil
	}

	subject := fmt.Sprintf("[%s] %s", subjectPrefix(event.Kind), event.Subject)
	body := event.Summary
	if event.ForumURL != "" {
		body += "\r\n\r\nView the public thread: " + event.ForumURL
	}

	headers := []string{
		fmt.Sprintf("From: %s", s.cfg.EmailFrom),
		fmt.Sprintf("To: %s", event.RecipientEmail),
		fmt.Sprintf("Subject: %s", subject),
		"Content-Type: text/plain; charset=UTF-8",
	}
	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + body

	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	addr := s.cfg.SMTPHost + ":" + s.cfg.SMTPPort
	return smtp.SendMail(addr, auth, s.cfg.EmailFrom, []string{event.RecipientEmail}, []byte(message))
}

func subjectPrefix(kind Kind) string {
	switch kind {
	case KindTicketClosed, KindAIResolutionConfirmed:
		return "Ticket closed"
	case KindTicketConverted:
		return "Ticket converted"
	case KindTicketEscalated:
		return "Ticket escalated"
	default:
		return "Ticket update"
	}
}
