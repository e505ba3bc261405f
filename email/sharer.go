package email

import (
	"context"
	"encoding/base64"
	"fmt"
	netmail "net/mail"

	"houtveilig/config"
	"houtveilig/dispatch"

	"github.com/apex/log"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// MaxMessageBytes is the SendGrid limit on the total message size.
const MaxMessageBytes = 30 * 1024 * 1024

type client interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// Sharer shares a report with its photos as a SendGrid email to the recipient.
type Sharer struct {
	fromName  string
	fromEmail string
	apiKey    string
	client    client
}

// NewSharer creates a sharer from the SendGrid configuration.
func NewSharer(cfg *config.Config) *Sharer {
	return &Sharer{
		fromName:  cfg.SendGridFromName,
		fromEmail: cfg.SendGridFromEmail,
		apiKey:    cfg.SendGridAPIKey,
		client:    sendgrid.NewSendClient(cfg.SendGridAPIKey),
	}
}

// CanShare reports whether p can be sent: an API key is configured, the
// recipient is a valid address and the message fits the size limit.
func (s *Sharer) CanShare(p dispatch.SharePayload) bool {
	if s.apiKey == "" {
		return false
	}
	if _, err := netmail.ParseAddress(p.Recipient); err != nil {
		return false
	}
	size := len(p.Title) + len(p.Text)
	for _, f := range p.Files {
		size += base64.StdEncoding.EncodedLen(len(f.Data))
	}
	return size <= MaxMessageBytes
}

// Share sends p as one email with every file attached.
func (s *Sharer) Share(ctx context.Context, p dispatch.SharePayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))
	message.Subject = p.Title

	to := mail.NewEmail(p.Recipient, p.Recipient)
	personalization := mail.NewPersonalization()
	personalization.AddTos(to)
	message.AddPersonalizations(personalization)

	message.AddContent(mail.NewContent("text/plain", p.Text))

	for _, f := range p.Files {
		attachment := mail.NewAttachment()
		attachment.SetContent(base64.StdEncoding.EncodeToString(f.Data))
		attachment.SetType(f.ContentType)
		attachment.SetFilename(f.Name)
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	response, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected report email: status %d", response.StatusCode)
	}

	log.Infof("Report email sent to %s with %d attachments! Status: %d", p.Recipient, len(p.Files), response.StatusCode)
	return nil
}
