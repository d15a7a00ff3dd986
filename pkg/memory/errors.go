package memory

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested memory record was not found.
	ErrNotFound = errors.New("memory record not found")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStorageOperation indicates that a backing-store operation failed.
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrClosed indicates that the client has been closed.
	ErrClosed = errors.New("client is closed")
)

// Error wraps errors with operation context.
//
// It records which operation failed, making error messages more
// informative for debugging, and unwraps to the underlying cause so
// errors.Is and errors.As keep working.
//
// Example:
//
//	err := &Error{Op: "Save", Err: ErrInvalidInput}
//	// Error() returns: "teachmem: Save: invalid input"
type Error struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message in the form
// "teachmem: <Op>: <Err>".
func (e *Error) Error() string {
	return fmt.Sprintf("teachmem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates an Error wrapping err, or nil if err is nil.
func newError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// storageError wraps a backing-store failure so the caller can match it
// with errors.Is(err, ErrStorageOperation) while keeping the cause.
func storageError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Op: op, Err: fmt.Errorf("%w: %v", ErrStorageOperation, cause)}
}
