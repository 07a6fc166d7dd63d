package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("state not found")

	// ErrDuplicate is returned when a write would violate a uniqueness
	// constraint, such as two sources with one name.
	ErrDuplicate = errors.New("duplicate state entry")

	// ErrInvalidEntity is returned when state violates a database
	// constraint, e.g. a negative fetch count.
	ErrInvalidEntity = errors.New("invalid state entry")

	// ErrTransactionFailed is returned when a transaction cannot begin,
	// commit or roll back.
	ErrTransactionFailed = errors.New("transaction failed")

	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// StoreError adds the failing entity and operation to a storage error.
// Entity is "source_state" or "compilation"; Operation is "load" or "save".
type StoreError struct {
	Entity    string
	Operation string
	Message   string
	Err       error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("state store: %s %s: %s", e.Operation, e.Entity, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError returns a StoreError wrapping err, which may be nil.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{Entity: entity, Operation: operation, Message: message, Err: err}
}
