// Package resend implements a Transport that delivers messages via the
// Resend HTTP API.
package resend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v3"

	"github.com/shineum/mailer-lite/internal/email"
	"github.com/shineum/mailer-lite/internal/transport"
)

var (
	ErrMissingAPIKey = errors.New("resend: api key is required")
	ErrNoSender      = errors.New("resend: message has no sender")
	ErrNoRecipients  = errors.New("resend: message has no recipients")
)

// Config holds the Resend API key.
type Config struct {
	APIKey string
}

// EmailSender is the part of the Resend client used by the transport.
type EmailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Transport maps messages onto Resend send requests. The API builds its own
// MIME document, so only the message content travels, not the rendered EML.
type Transport struct {
	transport.LastErr
	emails EmailSender
}

// New creates a Transport with a Resend client.
func New(cfg Config) (*Transport, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return NewWithSender(resend.NewClient(cfg.APIKey).Emails), nil
}

// NewWithSender creates a Transport around emails.
func NewWithSender(emails EmailSender) *Transport {
	return &Transport{emails: emails}
}

// Name returns the transport name.
func (t *Transport) Name() string { return "resend" }

// Send delivers msg.
func (t *Transport) Send(ctx context.Context, msg *email.Message) error {
	return t.Record(t.send(ctx, msg))
}

func (t *Transport) send(ctx context.Context, msg *email.Message) error {
	req, err := buildRequest(msg)
	if err != nil {
		return err
	}

	resp, err := t.emails.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}
	if resp != nil {
		slog.DebugContext(ctx, "resend accepted message", "resend_id", resp.Id)
	}
	return nil
}

func buildRequest(msg *email.Message) (*resend.SendEmailRequest, error) {
	if msg.Sender() == "" {
		return nil, ErrNoSender
	}
	if len(msg.RecipientAddresses()) == 0 {
		return nil, ErrNoRecipients
	}

	req := &resend.SendEmailRequest{
		From:    msg.Sender(),
		To:      msg.To(),
		Cc:      msg.Cc(),
		Bcc:     msg.Bcc(),
		ReplyTo: strings.Join(msg.ReplyTo(), ", "),
		Subject: msg.Subject(),
		Headers: map[string]string{email.HeaderMessageID: msg.ID()},
	}
	if msg.IsHTML() {
		req.Html = msg.Content()
		req.Text = email.HTMLToText(msg.Content())
	} else {
		req.Text = msg.Content()
	}

	for _, p := range msg.Related() {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Filename:    p.ContentID(),
			Content:     p.Content(),
			ContentType: p.ContentType(),
			ContentId:   p.ContentID(),
		})
	}
	for _, p := range msg.Attachments() {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Filename:    p.FileName(),
			Content:     p.Content(),
			ContentType: p.ContentType(),
		})
	}
	return req, nil
}
