// Package brokererr implements the error taxonomy from spec.md §7. Every
// error that can surface through the tool boundary carries a Kind so the
// dispatcher's envelope converter never needs a cross-package type switch.
package brokererr

import "fmt"

// Kind is one of the error kinds enumerated in spec.md §7.
type Kind string

const (
	ConfigInvalid     Kind = "ConfigInvalid"
	ConfigMissing     Kind = "ConfigMissing"
	UnknownSource     Kind = "UnknownSource"
	UnknownSession    Kind = "UnknownSession"
	AuthResolution    Kind = "AuthResolution"
	RemoteUnavailable Kind = "RemoteUnavailable"
	RemoteRejected    Kind = "RemoteRejected"
	Timeout           Kind = "Timeout"
	ResponseTooLarge  Kind = "ResponseTooLarge"
	InvalidArgument   Kind = "InvalidArgument"
	Unsupported       Kind = "Unsupported"
	Cancelled         Kind = "Cancelled"
	Internal          Kind = "Internal"
)

// Error is a kind-tagged error. Message must never contain secret material
// (spec.md §3 redaction invariant).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error carrying the kind and an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind of err, defaulting to Internal for errors that
// were never tagged (a contract violation elsewhere in the stack).
func KindOf(err error) Kind {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return Internal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
