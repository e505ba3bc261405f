package dispatch

import (
	"context"
	"errors"
	"fmt"

	"houtveilig/models"

	"github.com/apex/log"
)

// ErrShareCancelled is returned by a Sharer when the user dismisses the share.
var ErrShareCancelled = errors.New("share cancelled")

// Outcome is the result of one delivery attempt.
type Outcome int

const (
	Succeeded Outcome = iota
	Cancelled
	FailedTryNext
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Cancelled:
		return "cancelled"
	case FailedTryNext:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Attachment is one file handed to a share target or download.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// SharePayload is what a share target receives.
type SharePayload struct {
	Title     string
	Text      string
	Recipient string
	Files     []Attachment
}

// Sharer delivers a report with its photos attached.
type Sharer interface {
	// CanShare reports whether this payload can be shared at all.
	CanShare(p SharePayload) bool
	// Share delivers p. It returns ErrShareCancelled when the user backs out.
	Share(ctx context.Context, p SharePayload) error
}

// Submission is one composed report on its way out.
type Submission struct {
	Message
	Recipient string
	Photos    []models.Photo
	Batch     string
}

// Attachments decodes the photos into named JPEG files.
func (s *Submission) Attachments() ([]Attachment, error) {
	files := make([]Attachment, 0, len(s.Photos))
	for i, p := range s.Photos {
		data, err := p.Bytes()
		if err != nil {
			return nil, fmt.Errorf("failed to decode photo %s: %w", p.FileName, err)
		}
		files = append(files, Attachment{
			Name:        AttachmentName(i + 1),
			ContentType: "image/jpeg",
			Data:        data,
		})
	}
	return files, nil
}

// Strategy is one delivery channel. Strategies are tried in order until one
// succeeds or the user cancels.
type Strategy interface {
	Name() string
	Deliver(ctx context.Context, sub *Submission, res *Result) (Outcome, error)
}

type shareStrategy struct {
	sharer Sharer
}

func (s *shareStrategy) Name() string { return ChannelShare }

func (s *shareStrategy) Deliver(ctx context.Context, sub *Submission, res *Result) (Outcome, error) {
	if len(sub.Photos) == 0 {
		return FailedTryNext, nil
	}
	files, err := sub.Attachments()
	if err != nil {
		return FailedTryNext, err
	}
	payload := SharePayload{
		Title:     sub.Subject,
		Text:      sub.Body,
		Recipient: sub.Recipient,
		Files:     files,
	}
	if !s.sharer.CanShare(payload) {
		log.Debug("share target rejected payload")
		return FailedTryNext, nil
	}

	err = s.sharer.Share(ctx, payload)
	switch {
	case err == nil:
		res.notify(models.NoticeSuccess, "Report shared successfully!")
		return Succeeded, nil
	case errors.Is(err, ErrShareCancelled), errors.Is(err, context.Canceled):
		return Cancelled, nil
	default:
		return FailedTryNext, err
	}
}

type mailtoStrategy struct {
	d *Dispatcher
}

func (s *mailtoStrategy) Name() string { return ChannelMailto }

func (s *mailtoStrategy) Deliver(ctx context.Context, sub *Submission, res *Result) (Outcome, error) {
	res.MailtoURI = MailtoURI(sub.Recipient, sub.Message)
	if len(sub.Photos) > 0 {
		res.notify(models.NoticeWarning, "Photos are downloaded separately to attach")
		s.d.download(sub)
	}
	return Succeeded, nil
}
