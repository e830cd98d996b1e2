// Package apierr classifies backend failures into the kinds the UI renders.
// Every failure reaching a renderer is a *Error carrying one human-readable message.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind is the failure taxonomy.
type Kind int

const (
	// Validation failures are detected before any network call.
	Validation Kind = iota + 1
	// Transport failures never reached the server (DNS, connect, timeout).
	Transport
	// Server failures got a non-2xx HTTP response.
	Server
	// Application failures got a 2xx response whose payload carries an error.
	Application
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Transport:
		return "transport"
	case Server:
		return "server"
	case Application:
		return "application"
	default:
		return "unknown"
	}
}

// TransportMessage is shown whenever the server could not be reached.
const TransportMessage = "Network error: Could not reach the server. Please try again later."

// Error is a normalized failure.
type Error struct {
	Kind    Kind
	Message string
	Status  int   // HTTP status for Server errors
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidation builds a validation error with a user-facing message.
func NewValidation(msg string) *Error {
	return &Error{Kind: Validation, Message: msg}
}

// NewTransport wraps a network-level failure.
func NewTransport(cause error) *Error {
	return &Error{Kind: Transport, Message: TransportMessage, Err: cause}
}

// NewApplication wraps an error reported inside a successful response.
func NewApplication(msg string) *Error {
	return &Error{Kind: Application, Message: msg}
}

// FromResponse builds a Server error from a non-2xx status and its body.
// The message comes from the body's "detail" or "message" field, falling
// back to "Server error: <status>".
func FromResponse(status int, body []byte) *Error {
	return &Error{
		Kind:    Server,
		Status:  status,
		Message: extractMessage(status, body),
	}
}

func extractMessage(status int, body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := stringField(payload.Detail); msg != "" {
			return msg
		}
		if msg := stringField(payload.Message); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("Server error: %d", status)
}

// stringField returns raw as a string when it is a non-empty JSON string.
// FastAPI validation failures put a list in "detail"; those fall through.
func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// KindOf returns the kind of a normalized error, or 0 if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err is a normalized error of kind k.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}

// Message returns the user-facing text for any error. Unclassified errors
// fall back to their own text, or a generic message when that is empty.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Unknown error occurred"
}
