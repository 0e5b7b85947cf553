package ingest

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrInvalidMode is returned when a fetcher is asked for a mode it does not serve.
var ErrInvalidMode = errors.New("invalid fetch mode")

// RequestFailure is returned once the retry budget for an endpoint is exhausted.
type RequestFailure struct {
	Component string
	Endpoint  string
	Status    int
	Attempts  int
	Cause     error
}

func (e *RequestFailure) Error() string {
	msg := fmt.Sprintf("[%s] request failed after %d attempts (url: %s", e.Component, e.Attempts, e.Endpoint)
	if e.Status != 0 {
		msg += fmt.Sprintf(", status: %d", e.Status)
	}
	msg += ")"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RequestFailure) Unwrap() error { return e.Cause }

// ParseError reports a structural problem in an otherwise successful
// response: a missing element, attribute or field, or text that does not
// match its grammar. It is never retried.
type ParseError struct {
	Component string
	Input     string
	Reason    string
	Cause     error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Component, e.Reason)
	if e.Input != "" {
		msg += fmt.Sprintf(": %q", e.Input)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Cause }

// NewParseError builds a ParseError.
func NewParseError(component, reason, input string) error {
	return errors.WithStack(&ParseError{Component: component, Reason: reason, Input: input})
}

// WrapParseError builds a ParseError around cause.
func WrapParseError(cause error, component, reason, input string) error {
	return errors.WithStack(&ParseError{Component: component, Reason: reason, Input: input, Cause: cause})
}

// IsRequestFailure reports whether err carries a RequestFailure.
func IsRequestFailure(err error) bool {
	var target *RequestFailure
	return errors.As(err, &target)
}

// IsParseError reports whether err carries a ParseError.
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}
