// Package mailer wires configuration, transports and logging into a ready
// to use delivery pipeline.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docker/go-units"

	"github.com/shineum/mailer-lite/internal/config"
	"github.com/shineum/mailer-lite/internal/delivery"
	"github.com/shineum/mailer-lite/internal/email"
	"github.com/shineum/mailer-lite/internal/transport"
)

// Version is the application version.
const Version = "1.0.1"

// ErrAttachmentTooLarge is returned by Send when an attachment or inline
// resource exceeds the configured limit.
var ErrAttachmentTooLarge = errors.New("attachment too large")

// Option configures a Mailer.
type Option func(*Mailer)

// WithLogger sets the logger used by the delivery hooks.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mailer) { m.logger = l }
}

// WithRegistry replaces the transport factories.
func WithRegistry(r *Registry) Option {
	return func(m *Mailer) { m.registry = r }
}

// WithMessageOptions applies opts to every message created by the Mailer.
func WithMessageOptions(opts ...email.Option) Option {
	return func(m *Mailer) { m.messageOpts = append(m.messageOpts, opts...) }
}

// Mailer creates messages and delivers them through the configured transports.
type Mailer struct {
	coordinator       *delivery.Coordinator
	registry          *Registry
	logger            *slog.Logger
	messageOpts       []email.Option
	maxAttachmentSize int64
}

// New builds a Mailer from cfg. A nil cfg yields a Mailer with no transports.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Mailer, error) {
	m := &Mailer{
		coordinator: delivery.New(),
		registry:    DefaultRegistry(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	m.maxAttachmentSize = int64(cfg.MaxAttachmentSize)

	if cfg.DefaultFrom != "" {
		m.coordinator.OnBeforeSend(delivery.DefaultSender(cfg.DefaultFrom, cfg.DefaultFromName))
	}
	m.coordinator.OnError(m.logFailure)
	m.coordinator.OnAfterSend(m.logDelivery)

	for _, tc := range cfg.Transports {
		t, err := m.registry.Build(ctx, tc)
		if err != nil {
			return nil, err
		}
		m.coordinator.AddTransport(t, DomainFilter(tc.OnlyDomains))
	}
	return m, nil
}

// NewHTMLMessage returns an empty HTML message.
func (m *Mailer) NewHTMLMessage() *email.Message {
	return email.NewMessage(m.messageOpts...)
}

// NewTextMessage returns an empty plain-text message.
func (m *Mailer) NewTextMessage() *email.Message {
	return email.NewTextMessage(m.messageOpts...)
}

// AddTransport registers an extra transport after the configured ones.
func (m *Mailer) AddTransport(t transport.Transport, filter delivery.Filter) *Mailer {
	m.coordinator.AddTransport(t, filter)
	return m
}

// Transports returns the registered transports in order.
func (m *Mailer) Transports() []transport.Transport {
	return m.coordinator.Transports()
}

// Coordinator exposes the underlying coordinator for custom hooks.
func (m *Mailer) Coordinator() *delivery.Coordinator {
	return m.coordinator
}

// Send delivers msg through every transport. It returns nil when all
// attempted transports succeeded. A message over the attachment limit is
// rejected before any transport runs and leaves LastErrors empty.
func (m *Mailer) Send(ctx context.Context, msg *email.Message) error {
	if err := m.checkAttachments(msg); err != nil {
		m.coordinator.Reset()
		return err
	}
	return m.coordinator.Send(ctx, msg)
}

// LastErrors returns the failures of the latest Send as "<transport>: <error>".
func (m *Mailer) LastErrors() []string {
	return m.coordinator.Errors()
}

// Version returns the application version.
func (m *Mailer) Version() string { return Version }

func (m *Mailer) checkAttachments(msg *email.Message) error {
	if m.maxAttachmentSize <= 0 {
		return nil
	}
	parts := append(msg.Related(), msg.Attachments()...)
	for _, p := range parts {
		if size := int64(len(p.Content())); size > m.maxAttachmentSize {
			name := p.FileName()
			if name == "" {
				name = "cid:" + p.ContentID()
			}
			return fmt.Errorf("%w: %s is %s, limit is %s", ErrAttachmentTooLarge, name,
				units.BytesSize(float64(size)), units.BytesSize(float64(m.maxAttachmentSize)))
		}
	}
	return nil
}

func (m *Mailer) logFailure(ctx context.Context, msg *email.Message, t transport.Transport, _ *delivery.Coordinator) {
	m.logger.ErrorContext(ctx, "message not delivered",
		slog.String("recipients", strings.Join(msg.Recipients(), ", ")),
		slog.String("transport", t.Name()),
		slog.Any("error", t.LastError()),
	)
}

func (m *Mailer) logDelivery(ctx context.Context, msg *email.Message, c *delivery.Coordinator) {
	attrs := []any{
		slog.String("recipients", strings.Join(msg.Recipients(), ", ")),
		slog.String("from", msg.Sender()),
	}
	if errs := c.Errors(); len(errs) > 0 {
		attrs = append(attrs, slog.String("errors", strings.Join(errs, ", ")))
		m.logger.WarnContext(ctx, "message sent with errors", attrs...)
		return
	}
	m.logger.InfoContext(ctx, "message sent", attrs...)
}
