package stores

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a storage failure.
type ErrorKind string

const (
	// ErrorKindStorageUnavailable means the database file could not be opened,
	// created or written when setting up the store.
	ErrorKindStorageUnavailable ErrorKind = "storage_unavailable"

	// ErrorKindWriteFailed means an insert could not complete.
	ErrorKindWriteFailed ErrorKind = "write_failed"

	// ErrorKindReadFailed means listing could not complete.
	ErrorKindReadFailed ErrorKind = "read_failed"

	// ErrorKindDeleteFailed means a delete could not complete. A missing
	// target is never reported with this kind.
	ErrorKindDeleteFailed ErrorKind = "delete_failed"
)

// Sentinels for errors.Is matching against a StoreError of the same kind.
var (
	ErrStorageUnavailable = &StoreError{Kind: ErrorKindStorageUnavailable}
	ErrWriteFailed        = &StoreError{Kind: ErrorKindWriteFailed}
	ErrReadFailed         = &StoreError{Kind: ErrorKindReadFailed}
	ErrDeleteFailed       = &StoreError{Kind: ErrorKindDeleteFailed}
)

// StoreError is a classified storage failure.
type StoreError struct {
	// Kind is the failure classification.
	Kind ErrorKind `json:"kind"`

	// Op is the store operation that failed.
	Op string `json:"op,omitempty"`

	// Err is the underlying driver error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Err.Error())
	case e.Err != nil:
		return fmt.Sprintf("[%s] %s", e.Kind, e.Err.Error())
	case e.Op != "":
		return fmt.Sprintf("[%s] %s", e.Kind, e.Op)
	}
	return string(e.Kind)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a StoreError of the same kind.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newStoreError(kind ErrorKind, op string, err error) *StoreError {
	return &StoreError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the classification of err, or "" if err is not a StoreError.
func KindOf(err error) ErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
