package errors

import (
	"errors"
	"time"
)

var (
	// ErrMalformedPacket is returned when a message or envelope is missing a required field.
	ErrMalformedPacket = errors.New("malformed packet")
	// ErrTokenMissing is returned when a handshake carries no token.
	ErrTokenMissing = errors.New("token missing")
	// ErrTokenMalformed is returned when a token is not a well-formed session token.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenNotFound is returned when a token does not match any session.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExpired is returned when a session token has expired.
	ErrTokenExpired = errors.New("token expired")
	// ErrUnmappedEvent is returned when no handler exists for a directive/topic pair.
	ErrUnmappedEvent = errors.New("unmapped event")
)

// Client-facing numeric codes carried in the shared error body.
const (
	CodeMalformedPacket = 4000
	CodeTokenMissing    = 4100
	CodeTokenMalformed  = 4101
	CodeTokenNotFound   = 4102
	CodeTokenExpired    = 4103
)

// Body is the shared error shape sent to clients, reused verbatim by the
// relay and the HTTP API.
type Body struct {
	Timestamp string `json:"timestamp"`
	Error     int    `json:"error"`
	Message   string `json:"message"`
	Details   string `json:"details"`
}

// NewBody builds an error body stamped with the current UTC time.
func NewBody(code int, message, details string) Body {
	return Body{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Error:     code,
		Message:   message,
		Details:   details,
	}
}

// Code maps a taxonomy error to its client-facing numeric code.
// Unknown errors map to the malformed-packet code.
func Code(err error) int {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return CodeTokenMissing
	case errors.Is(err, ErrTokenMalformed):
		return CodeTokenMalformed
	case errors.Is(err, ErrTokenNotFound):
		return CodeTokenNotFound
	case errors.Is(err, ErrTokenExpired):
		return CodeTokenExpired
	default:
		return CodeMalformedPacket
	}
}

// New creates a new error with the given message.
func New(msg string) error {
	return errors.New(msg)
}

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.New(msg + ": " + err.Error())
}
