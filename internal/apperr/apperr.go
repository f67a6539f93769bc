// Package apperr defines the error kinds shared by the feed core.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: a referenced user or follow edge does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidEdge: a user tried to follow themselves.
	ErrInvalidEdge = errors.New("invalid follow edge")
	// ErrConflict: a concurrent edit was detected on the same record.
	ErrConflict = errors.New("conflicting concurrent edit")
	// ErrValidation: a record has a malformed shape.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports which field of a record is malformed.
type ValidationError struct {
	Record string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s.%s: %s", e.Record, e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(record, field, reason string) error {
	return &ValidationError{Record: record, Field: field, Reason: reason}
}

// Retryable reports whether err may succeed on a later attempt.
// Domain faults never are.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidEdge), errors.Is(err, ErrValidation):
		return false
	}
	return true
}
