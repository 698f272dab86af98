package smtp

import (
	"errors"
	"fmt"
)

// Error codes reported by the transport.
const (
	CodeConnect         = 100 // the socket could not be opened
	CodeGreeting        = 101 // the server greeting was not a 220
	CodeUnexpectedReply = 102 // a reply code differed from the expected one
	CodeWrite           = 103 // writing to the socket failed
	CodeRead            = 104 // reading failed or the server hung up
)

var (
	ErrConnection = errors.New("smtp: connection failed")
	ErrProtocol   = errors.New("smtp: protocol error")
	ErrIO         = errors.New("smtp: i/o error")
)

// Error describes why a delivery stopped. Reply holds the offending server
// line for protocol errors; Err holds the underlying network error.
type Error struct {
	Code  int
	Stage string
	Reply string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Reply != "":
		return fmt.Sprintf("%d: %s: unexpected reply %q", e.Code, e.Stage, e.Reply)
	case e.Err != nil:
		return fmt.Sprintf("%d: %s: %v", e.Code, e.Stage, e.Err)
	default:
		return fmt.Sprintf("%d: %s", e.Code, e.Stage)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error against its category: ErrConnection, ErrProtocol or ErrIO.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConnection:
		return e.Code == CodeConnect
	case ErrProtocol:
		return e.Code == CodeGreeting || e.Code == CodeUnexpectedReply
	case ErrIO:
		return e.Code == CodeWrite || e.Code == CodeRead
	}
	return false
}
