package delivery

import (
	"strings"
)

// Failure is one transport's failed attempt.
type Failure struct {
	Transport string
	Err       error
}

func (f Failure) String() string {
	return f.Transport + ": " + f.Err.Error()
}

// Error aggregates the failures of a single Send.
type Error struct {
	MessageID string
	Failures  []Failure
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return "message " + e.MessageID + " not delivered: " + strings.Join(parts, "; ")
}

// Unwrap exposes every transport error to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Err
	}
	return out
}
