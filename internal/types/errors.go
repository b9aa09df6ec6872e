package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable tag surfaced to callers for every pipeline failure.
type ErrorKind string

const (
	KindTransport           ErrorKind = "transport_error"
	KindUpstream            ErrorKind = "upstream_error"
	KindProtocol            ErrorKind = "protocol_error"
	KindMalformedResponse   ErrorKind = "malformed_response"
	KindValidation          ErrorKind = "validation_error"
	KindNotFoundOrForbidden ErrorKind = "not_found_or_forbidden"
	KindPersistence         ErrorKind = "persistence_error"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrTransport           = &Error{Kind: KindTransport}
	ErrUpstream            = &Error{Kind: KindUpstream}
	ErrProtocol            = &Error{Kind: KindProtocol}
	ErrMalformedResponse   = &Error{Kind: KindMalformedResponse}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFoundOrForbidden = &Error{Kind: KindNotFoundOrForbidden}
	ErrPersistence         = &Error{Kind: KindPersistence}
)

// Error carries a kind tag, a message safe to show callers and the wrapped cause.
// StatusCode is the provider HTTP status for upstream and protocol errors.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind only.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func NewTransportError(msg string, err error) *Error {
	return &Error{Kind: KindTransport, Message: msg, Err: err}
}

func NewUpstreamError(msg string, status int, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, StatusCode: status, Err: err}
}

func NewProtocolError(msg string, status int, err error) *Error {
	return &Error{Kind: KindProtocol, Message: msg, StatusCode: status, Err: err}
}

func NewMalformedResponseError(msg string, err error) *Error {
	return &Error{Kind: KindMalformedResponse, Message: msg, Err: err}
}

func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewNotFoundOrForbiddenError has a fixed message so that a missing record and
// a record owned by someone else look identical to the caller.
func NewNotFoundOrForbiddenError() *Error {
	return &Error{Kind: KindNotFoundOrForbidden, Message: "itinerary not found or no permission"}
}

func NewPersistenceError(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// PublicMessage returns the caller-safe message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
