package bilibili

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures for the boundary layer.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindParse marks user-correctable input that no rule recognized.
	KindParse
	// KindResolution marks a failed short-link expansion.
	KindResolution
	// KindTransport marks network failures and non-2xx upstream responses.
	KindTransport
	// KindRemoteAPI marks a reachable upstream that rejected the call with
	// a nonzero application code.
	KindRemoteAPI
	// KindNotFound marks content the upstream does not know about.
	KindNotFound
	// KindNoStream marks found metadata with no playable stream attached.
	KindNoStream
)

// Error carries the failure kind, a user-facing message and the upstream
// application code when one was returned.
type Error struct {
	Kind    ErrorKind
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "bilibili: unknown error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the classification of err, or KindUnknown for foreign errors.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}
