package base

import (
	"errors"
	"fmt"
)

// Error categories. Use errors.Is to classify an error returned by any component.
var (
	// ErrFileAccess covers open, stat and read failures of watched files
	ErrFileAccess = errors.New("file access error")

	// ErrTransport is returned when the collector can't be reached after all retries
	ErrTransport = errors.New("transport error")

	// ErrStore covers failures of the persistent progress store
	ErrStore = errors.New("store error")
)

type categorizedError struct {
	category error
	cause    error
}

func (e *categorizedError) Error() string {
	return fmt.Sprintf("%s: %s", e.category.Error(), e.cause.Error())
}

func (e *categorizedError) Is(target error) bool {
	return target == e.category
}

func (e *categorizedError) Unwrap() error {
	return e.cause
}

// NewFileAccessError wraps the cause as ErrFileAccess
func NewFileAccessError(cause error) error {
	return &categorizedError{ErrFileAccess, cause}
}

// NewTransportError wraps the cause as ErrTransport
func NewTransportError(cause error) error {
	return &categorizedError{ErrTransport, cause}
}

// NewStoreError wraps the cause as ErrStore
func NewStoreError(cause error) error {
	return &categorizedError{ErrStore, cause}
}
