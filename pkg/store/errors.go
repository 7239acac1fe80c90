package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations
var (
	// ErrNotFound is returned when no visible document has the requested id
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when a save carries a stale revision
	ErrConflict = errors.New("document update conflict")

	// ErrInvalidAttribute is returned for attribute names a store cannot address
	ErrInvalidAttribute = errors.New("invalid attribute name")
)

// ConflictError carries the currently stored state of a conflicting document.
// Current may be nil when the store could not read it back.
type ConflictError struct {
	Type    string
	ID      string
	Rev     string
	Current *Record
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s/%s at revision %s", ErrConflict, e.Type, e.ID, e.Rev)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// IsNotFound checks if an error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is ErrConflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// NotFound wraps ErrNotFound with the document coordinates.
func NotFound(typ, id string) error {
	return fmt.Errorf("%w: %s/%s", ErrNotFound, typ, id)
}
