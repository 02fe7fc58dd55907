package mailer

import (
	"context"
	"fmt"

	"github.com/mrz1836/postmark"

	"github.com/iliyamo/user-account-service/internal/queue"
)

// PostmarkSender delivers queued email events through Postmark's
// transactional API.  It implements queue.Deliverer.
type PostmarkSender struct {
	client *postmark.Client
	from   string
}

func NewPostmarkSender(serverToken, accountToken, from string) *PostmarkSender {
	return &PostmarkSender{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}
}

// Deliver renders the event into a plain transactional email and sends it.
func (s *PostmarkSender) Deliver(ctx context.Context, ev queue.EmailEvent) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.from,
		To:       ev.Recipient,
		Subject:  ev.Subject,
		TextBody: textBody(ev),
		HTMLBody: htmlBody(ev),
	})
	if err != nil {
		return err
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}
	return nil
}

func textBody(ev queue.EmailEvent) string {
	greeting := "Hello"
	if ev.Name != "" {
		greeting = "Hello " + ev.Name
	}
	switch ev.Kind {
	case queue.EmailPasswordRecovery:
		return fmt.Sprintf("%s,\n\nA password reset was requested for your account. Follow the link to choose a new password:\n\n%s\n\nIf you did not request this, you can ignore this message.\n", greeting, ev.Link)
	case queue.EmailVerification:
		return fmt.Sprintf("%s,\n\nPlease confirm your email address by following the link:\n\n%s\n", greeting, ev.Link)
	default:
		return fmt.Sprintf("%s,\n\nWelcome aboard! Please verify your email address by following the link:\n\n%s\n", greeting, ev.Link)
	}
}

func htmlBody(ev queue.EmailEvent) string {
	greeting := "Hello"
	if ev.Name != "" {
		greeting = "Hello " + ev.Name
	}
	var intro string
	switch ev.Kind {
	case queue.EmailPasswordRecovery:
		intro = "A password reset was requested for your account. Follow the link to choose a new password."
	case queue.EmailVerification:
		intro = "Please confirm your email address by following the link."
	default:
		intro = "Welcome aboard! Please verify your email address by following the link."
	}
	return fmt.Sprintf("<p>%s,</p><p>%s</p><p><a href=%q>%s</a></p>", greeting, intro, ev.Link, ev.Link)
}
