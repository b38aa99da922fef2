// Package apperrors defines the error kinds domain services return so the
// HTTP layer can map them to status codes (422 validation, 409 conflict,
// 404 not found, 403 forbidden) without string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for lookup and authorization failures.
var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("forbidden")
)

// ValidationError marks bad input on a named field. Distinguishable from
// conflict and not-found errors so callers can render a 422.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidation builds a field-scoped validation error.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError marks a mutation rejected because it would violate a domain
// invariant (last owner, duplicate membership). Carries an actionable
// message for the caller.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflict builds a conflict error.
func NewConflict(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
