// Package apperr defines the error kinds surfaced to callers of the service.
//
// Adapters return *UpstreamError for non-2xx responses from remote APIs,
// request handling returns *ValidationError before any remote call is made,
// and lookups return *NotFoundError with optional hints for the caller.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// UpstreamError is a non-2xx response from a remote API.
type UpstreamError struct {
	Service string
	Status  int
	Reason  string
	Body    string
}

func (e *UpstreamError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s API error: %d %s", e.Service, e.Status, reason)
}

// Upstream builds an UpstreamError from a response status code.
func Upstream(service string, status int, body string) *UpstreamError {
	return &UpstreamError{
		Service: service,
		Status:  status,
		Reason:  http.StatusText(status),
		Body:    truncate(body, 512),
	}
}

// ValidationError reports missing or malformed request input.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Missing returns a ValidationError naming the absent fields, or nil if none.
func Missing(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// Invalid returns a ValidationError with a formatted message.
func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an absent syllabus, page, weekly email, file or identity.
type NotFoundError struct {
	What    string
	Message string
	Hints   map[string]any
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.What + " not found"
}

// NotFound returns a NotFoundError for what with a formatted message.
func NotFound(what, format string, args ...any) *NotFoundError {
	return &NotFoundError{What: what, Message: fmt.Sprintf(format, args...)}
}

// WithHint attaches a hint that is returned to the caller alongside the error.
func (e *NotFoundError) WithHint(key string, v any) *NotFoundError {
	if e.Hints == nil {
		e.Hints = make(map[string]any)
	}
	e.Hints[key] = v
	return e
}

// Kind classifies err for the transport layer.
func Kind(err error) string {
	var up *UpstreamError
	var ve *ValidationError
	var nf *NotFoundError
	switch {
	case errors.As(err, &ve):
		return "validation_error"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &up):
		return "upstream_error"
	default:
		return "internal_error"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
