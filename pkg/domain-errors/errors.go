// Package dErrors provides coded domain errors shared across services.
//
// Services return these so transports and CLIs can translate a failure into
// the right status without string matching. Stores return sentinel errors
// (pkg/platform/sentinel) and services wrap them with a code here.
package dErrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of domain failure.
type Code string

const (
	CodeBadRequest        Code = "bad_request"
	CodeValidationFailed  Code = "validation_failed"
	CodeInvalidTransition Code = "invalid_transition"
	CodeDecryptionFailed  Code = "decryption_failed"
	CodeAuditWriteFailed  Code = "audit_write_failed"
	CodePurgeAborted      Code = "purge_aborted"
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
	CodeTimeout           Code = "timeout"
	CodeInternal          Code = "internal"
)

// Error is a domain error carrying a machine-readable code, a human-readable
// message, and optionally the failing field for validation errors.
type Error struct {
	Code    Code
	Message string
	Field   string
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %q)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewField creates a validation-style error that names the offending field.
func NewField(code Code, message, field string) *Error {
	return &Error{Code: code, Message: message, Field: field}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// non-domain errors.
func CodeOf(err error) Code {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return CodeInternal
}
