package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// errorResponse is the error envelope returned by the Graph API.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendError is a non-success response from the sendMail endpoint.
type SendError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter string
}

func (e *SendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph: HTTP %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph: HTTP %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the same request may succeed later.
func (e *SendError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusUnauthorized,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// IsTemporary reports whether err wraps a temporary SendError.
func IsTemporary(err error) bool {
	var se *SendError
	return errors.As(err, &se) && se.Temporary()
}
