// Package apperrors defines the error taxonomy shared by the catalog layers.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a detail lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed filters and parameters.
	ErrValidation = errors.New("validation failed")
)

// StoreError wraps a failure of the relational store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Store wraps err as a StoreError for operation op. A nil err stays nil.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Validation returns an error matching ErrValidation with a caller-facing reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsStore reports whether err was raised by the store layer.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
