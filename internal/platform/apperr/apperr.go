// Package apperr defines the error taxonomy shared by all domain services.
// Services raise these errors at the point of detection; the echo error
// handler translates them exactly once into the HTTP response envelope.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindValidation
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "Not Found"
	case KindConflict:
		return "Business Rule Violation"
	case KindValidation:
		return "Validation Failed"
	case KindForbidden:
		return "Access Denied"
	default:
		return "Internal Server Error"
	}
}

type Error struct {
	Kind    Kind
	Message string
	// Fields carries per-field violations for validation errors.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports that a referenced entity does not exist.
func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a business-rule precondition failure.
func Conflict(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed or missing input, with optional per-field detail.
func Validation(message string, fields map[string]string) error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// RequiredField is a shorthand for a single missing-field validation error.
func RequiredField(field string) error {
	return Validation(field+" is required", map[string]string{field: "required"})
}

// Forbidden reports that the caller is not allowed to perform the operation.
func Forbidden(format string, args ...interface{}) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected error.
func Internal(err error) error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf classifies err. Unrecognized errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

func IsConflict(err error) bool { return KindOf(err) == KindConflict }

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
