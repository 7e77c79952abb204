package utils

import (
	"errors"
	"fmt"
)

// Common application errors used across services.
var (
	ErrValidation      = errors.New("VALIDATION_ERROR")
	ErrNotFound        = errors.New("NOT_FOUND")
	ErrPersistence     = errors.New("PERSISTENCE_WARNING")
	ErrMalformedRecord = errors.New("MALFORMED_RECORD")
	ErrEmptyCart       = errors.New("EMPTY_CART")
	ErrNotOwned        = errors.New("NOT_OWNED")
	ErrDownloadLimit   = errors.New("DOWNLOAD_LIMIT_REACHED")
	ErrInvalidStep     = errors.New("INVALID_CHECKOUT_STEP")
)

// FieldError reports a rejected input field. It matches ErrValidation.
type FieldError struct {
	Field  string
	Reason string
}

// NewValidationError builds a FieldError for field.
func NewValidationError(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// PersistenceWarning means a store write was abandoned. The in-memory value that
// triggered it is still the source of truth for the session.
type PersistenceWarning struct {
	Key string
	Err error
}

func (w *PersistenceWarning) Error() string {
	return fmt.Sprintf("%s: write of %q abandoned: %v", ErrPersistence, w.Key, w.Err)
}

func (w *PersistenceWarning) Unwrap() []error { return []error{ErrPersistence, w.Err} }

// MalformedRecordError means a persisted record could not be decoded.
type MalformedRecordError struct {
	Key string
	Err error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s: %q: %v", ErrMalformedRecord, e.Key, e.Err)
}

func (e *MalformedRecordError) Unwrap() []error { return []error{ErrMalformedRecord, e.Err} }

// IsWarning reports whether err carries only non-fatal persistence warnings.
// A nil error is not a warning.
func IsWarning(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if _, single := err.(*PersistenceWarning); !single {
			for _, e := range joined.Unwrap() {
				if !IsWarning(e) {
					return false
				}
			}
			return true
		}
	}
	return errors.Is(err, ErrPersistence)
}
