// Package smperrors defines the typed error kinds used across the SMP
// pipeline (download, container, validation) so callers can classify
// failures without string matching.
package smperrors

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Kind classifies an SMP pipeline failure by its origin and recovery
// behavior.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindInvalidArchive     Kind = "INVALID_ARCHIVE"
	KindInvalidStyle       Kind = "INVALID_STYLE"
	KindMissingMetadata    Kind = "MISSING_METADATA"
	KindUnknownFileType    Kind = "UNKNOWN_FILE_TYPE"
	KindUnknownContentType Kind = "UNKNOWN_CONTENT_TYPE"
	KindUnknownResource    Kind = "UNKNOWN_RESOURCE_TYPE"
	KindUnsupportedVersion Kind = "UNSUPPORTED_VERSION"
	KindMissingAccessToken Kind = "MISSING_ACCESS_TOKEN"
	KindSecretToken        Kind = "SECRET_TOKEN"
	KindResourceMissing    Kind = "RESOURCE_MISSING"
	KindFormatMismatch     Kind = "FORMAT_MISMATCH"
	KindNetworkError       Kind = "NETWORK_ERROR"
	KindTimeout            Kind = "TIMEOUT"
	KindRetriesExhausted   Kind = "RETRIES_EXHAUSTED"
)

// Error is the typed error carried across package boundaries. Cause
// retains an eris-wrapped stack trace so a fatal error can be logged
// with its origin even after it has crossed several layers.
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

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error, preserving an eris stack
// trace rooted at the call site so the ultimate cause survives
// re-wrapping as the error moves from fetch -> scheduler -> writer.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   eris.Wrap(cause, fmt.Sprintf(format, args...)),
	}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind == kind
	}
	return false
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
