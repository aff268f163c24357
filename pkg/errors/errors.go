package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors handlers and services branch on. Each carries the HTTP
// status the API layer should respond with, so handlers never translate
// error kinds into status codes themselves.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Webhook reconciliation outcomes. UNPROCESSABLE_EVENT intentionally maps
	// to 200: the provider delivered a well-formed event we choose not to
	// apply, and a non-2xx response would only trigger pointless redelivery.
	ErrInvalidSignature   = New("INVALID_SIGNATURE", http.StatusBadRequest, "webhook signature verification failed")
	ErrMalformedEvent     = New("MALFORMED_EVENT", http.StatusBadRequest, "cannot parse webhook event")
	ErrUnprocessableEvent = New("UNPROCESSABLE_EVENT", http.StatusOK, "event acknowledged but not applied")
	ErrUpstream           = New("UPSTREAM_ERROR", http.StatusBadGateway, "upstream call failed")
)

// Error is a typed domain error carrying a stable machine code, an HTTP
// status and an optional wrapped cause.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// New creates an Error with no wrapped cause.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches a code, status and message to an underlying error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Clone copies the error so a call site can override the message without
// mutating the shared sentinel. An empty message keeps the original.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	c := *err
	if message != "" {
		c.Message = message
	}
	return &c
}

// FromError normalises any error into an *Error, wrapping unknown errors
// as internal so unexpected failures never leak their raw text to clients.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code, so errors.Is works against the sentinels for
// values produced by Clone and Wrap.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && t != nil && e.Code == t.Code
}
