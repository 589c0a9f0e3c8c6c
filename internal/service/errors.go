package service

import (
	"errors"
	"fmt"

	"go-cms-app/internal/data"
)

var (
	// ErrNotFound covers both absent entities and entities the caller does not own.
	ErrNotFound = errors.New("not found")
	// ErrInternalConsistency signals stored data that breaks the tree invariants.
	ErrInternalConsistency = errors.New("internal consistency error")
)

// ValidationError reports a request that cannot be applied as given.
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

// ConflictError reports a request that clashes with the current state.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func validationErr(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// inconsistency wraps ErrInternalConsistency with detail meant for logs only.
func inconsistency(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInternalConsistency, fmt.Sprintf(format, args...))
}

// translate maps store-level errors onto service error kinds.
func translate(err error) error {
	if errors.Is(err, data.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
