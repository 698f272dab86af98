// Package transport defines the contract every delivery mechanism implements.
package transport

import (
	"context"

	"github.com/shineum/mailer-lite/internal/email"
)

// Transport delivers a rendered message to one destination: a mail server,
// a directory, an API. Implementations handle one Send at a time.
type Transport interface {
	// Send delivers msg. A nil error means the destination accepted it.
	Send(ctx context.Context, msg *email.Message) error

	// LastError returns the failure of the most recent Send, or nil.
	LastError() error

	// Name identifies the transport in error reports and logs.
	Name() string
}

// LastErr records the outcome of the most recent Send. Embed it to satisfy
// the LastError half of Transport.
type LastErr struct {
	err error
}

// Record stores err as the latest outcome and returns it unchanged.
func (l *LastErr) Record(err error) error {
	l.err = err
	return err
}

// LastError returns the recorded outcome.
func (l *LastErr) LastError() error { return l.err }
