package compressor

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a compression failure for reporting and batch
// aggregation.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindSourceNotFound
	KindUnsupportedFormat
	KindToolUnavailable
	KindHeicDecodeFailed
	KindVideoEncodeFailed
	KindConfigurationError
)

// String returns the string representation of the ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case KindSourceNotFound:
		return "source not found"
	case KindUnsupportedFormat:
		return "unsupported format"
	case KindToolUnavailable:
		return "tool unavailable"
	case KindHeicDecodeFailed:
		return "heic decode failed"
	case KindVideoEncodeFailed:
		return "video encode failed"
	case KindConfigurationError:
		return "configuration error"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by the compressors. Diagnostic
// carries the external tool's output verbatim when one was involved.
type Error struct {
	Kind       ErrorKind
	Path       string
	Message    string
	Diagnostic string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds a typed compression error.
func newError(kind ErrorKind, path, message string, err error) *Error {
	return &Error{Kind: kind, Path: path, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from err, or KindUnknown when err is not a
// compression error.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// DiagnosticOf extracts the verbatim tool diagnostic from err, if any.
func DiagnosticOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Diagnostic
	}
	return ""
}
