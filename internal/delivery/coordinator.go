// Package delivery fans a message out to several transports, collects their
// failures and runs lifecycle hooks around each send.
package delivery

import (
	"context"
	"log/slog"

	"github.com/shineum/mailer-lite/internal/email"
	"github.com/shineum/mailer-lite/internal/transport"
)

// Filter decides whether a transport is attempted for a message.
type Filter func(msg *email.Message) bool

// Hook runs before or after a send.
type Hook func(ctx context.Context, msg *email.Message, c *Coordinator)

// ErrorHook runs once per failed transport, right after the failure.
type ErrorHook func(ctx context.Context, msg *email.Message, t transport.Transport, c *Coordinator)

type registration struct {
	transport transport.Transport
	filter    Filter
}

// Coordinator delivers messages through its registered transports in
// registration order. It is not safe for concurrent use.
type Coordinator struct {
	transports []registration
	beforeSend []Hook
	afterSend  []Hook
	onError    []ErrorHook
	errors     []Failure
}

// New returns a coordinator with no transports and no hooks.
func New() *Coordinator {
	return &Coordinator{}
}

// AddTransport registers t. A nil filter attempts t for every message.
func (c *Coordinator) AddTransport(t transport.Transport, filter Filter) {
	c.transports = append(c.transports, registration{transport: t, filter: filter})
}

// Transports returns the registered transports in order.
func (c *Coordinator) Transports() []transport.Transport {
	out := make([]transport.Transport, len(c.transports))
	for i, r := range c.transports {
		out[i] = r.transport
	}
	return out
}

func (c *Coordinator) OnBeforeSend(h Hook) { c.beforeSend = append(c.beforeSend, h) }
func (c *Coordinator) OnAfterSend(h Hook) { c.afterSend = append(c.afterSend, h) }
func (c *Coordinator) OnError(h ErrorHook) { c.onError = append(c.onError, h) }

// Send offers msg to every registered transport whose filter accepts it.
// A failing transport does not stop the others. Send returns nil when all
// attempted transports succeeded and an *Error listing the failures
// otherwise. The failure list is reset on every call.
func (c *Coordinator) Send(ctx context.Context, msg *email.Message) error {
	c.Reset()
	ctx = ContextWithMessageID(ctx, msg.ID())

	for _, h := range c.beforeSend {
		h(ctx, msg, c)
	}

	for _, r := range c.transports {
		if r.filter != nil && !r.filter(msg) {
			slog.DebugContext(ctx, "transport skipped by filter", "transport", r.transport.Name())
			continue
		}

		err := r.transport.Send(ctx, msg)
		if err == nil {
			slog.DebugContext(ctx, "transport delivered", "transport", r.transport.Name())
			continue
		}

		for _, h := range c.onError {
			h(ctx, msg, r.transport, c)
		}
		c.errors = append(c.errors, Failure{Transport: r.transport.Name(), Err: err})
	}

	for _, h := range c.afterSend {
		h(ctx, msg, c)
	}

	if len(c.errors) == 0 {
		return nil
	}
	return &Error{MessageID: msg.ID(), Failures: append([]Failure(nil), c.errors...)}
}

// Reset clears the failures of the latest Send. Callers that reject a
// message before handing it to Send use it so Errors reflects that attempt.
func (c *Coordinator) Reset() { c.errors = nil }

// Errors returns the failures of the latest Send as "<transport>: <error>".
func (c *Coordinator) Errors() []string {
	out := make([]string, len(c.errors))
	for i, f := range c.errors {
		out[i] = f.String()
	}
	return out
}

// Failures returns the failures of the latest Send.
func (c *Coordinator) Failures() []Failure {
	return append([]Failure(nil), c.errors...)
}

// DefaultSender returns a hook that sets the sender of messages that have none.
func DefaultSender(addr, name string) Hook {
	return func(_ context.Context, msg *email.Message, _ *Coordinator) {
		if msg.Sender() == "" {
			msg.SetSender(addr, name)
		}
	}
}
