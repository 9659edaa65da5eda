package relay

import (
	"errors"
	"fmt"
)

// Kind classifies relay failures.
type Kind string

const (
	// KindInvalidInput marks requests rejected before any network I/O.
	KindInvalidInput Kind = "invalid_input"
	// KindClient marks a failure to build the outbound HTTP client.
	KindClient Kind = "client"
	// KindTransport covers DNS, connect, TLS, timeout and redirect failures.
	KindTransport Kind = "transport"
	// KindBodyDecode marks a response body that could not be read or is not text.
	KindBodyDecode Kind = "body_decode"
	// KindHTTPStatus is only produced by the Forwarder for non-2xx replies.
	KindHTTPStatus Kind = "http_status"
)

// Error carries a failure kind together with its descriptive text.
type Error struct {
	Kind Kind
	Msg  string
	// Status and Body are set for KindHTTPStatus.
	Status uint16
	Body   string
	Err    error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of err, or "" when err is not a relay error.
func KindOf(err error) Kind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return ""
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// InvalidInput builds a KindInvalidInput error for callers validating arguments.
func InvalidInput(format string, args ...any) error {
	return newError(KindInvalidInput, nil, format, args...)
}
