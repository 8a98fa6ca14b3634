package escalation

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier mirrors escalations to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	post       func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewSlackNotifier creates a notifier posting to webhookURL.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, post: slack.PostWebhookContext}
}

// Notify posts the subject as a bold header followed by the body.
func (s *SlackNotifier) Notify(ctx context.Context, subject, body string) error {
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("*%s*\n```\n%s\n```", subject, body),
	}
	if err := s.post(ctx, s.webhookURL, msg); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}
