package notify

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/opsdesk/support-engine/internal/config"
)

// SinkChatOps is the chat-ops sink name.
const SinkChatOps = "chatops"

type slackSink struct {
	client  *slack.Client
	channel string
}

// NewSlackSink builds the chat-ops sink over the Slack web API.
func NewSlackSink(cfg config.NotifyConfig) Sink {
	return &slackSink{
		client:  slack.New(cfg.SlackToken),
		channel: cfg.SlackChannel,
	}
}

func (s *slackSink) Name() string { return SinkChatOps }

func (s *slackSink) Send(ctx context.Context, event Event) error {
	attachment := slack.Attachment{
		Title: event.Subject,
		Text:  event.Summary,
		Fields: []slack.AttachmentField{
			{Title: "Ticket", Value: event.TicketID, Short: true},
			{Title: "Status", Value: string(event.Status), Short: true},
			{Title: "Priority", Value: string(event.Priority), Short: true},
		},
		Footer: string(event.Kind),
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(event.Summary, false),
		slack.MsgOptionAttachments(attachment),
	)
	return err
}
