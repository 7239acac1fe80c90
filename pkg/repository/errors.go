package repository

import (
	"errors"
	"fmt"

	"github.com/ammar0144/docs4go/pkg/store"
)

// Sentinel errors for repository operations
var (
	// ErrNotFound is returned when no visible entity matches a lookup
	ErrNotFound = store.ErrNotFound

	// ErrConflict is returned when a save stays in conflict after resolution
	ErrConflict = store.ErrConflict

	// ErrTypeMismatch is returned when an association receives an entity of the wrong type
	ErrTypeMismatch = errors.New("association type mismatch")

	// ErrInvalidOperation is returned for calls that are not valid in the entity's state
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrValidationFailed is returned when the validator rejects an entity
	ErrValidationFailed = errors.New("validation failed")

	// ErrUnknownType is returned for types that were never defined in the registry
	ErrUnknownType = errors.New("unknown entity type")

	// ErrUnknownAssociation is returned for association names a type does not declare
	ErrUnknownAssociation = errors.New("unknown association")
)

// ValidationError wraps the validator's verdict for a single entity.
type ValidationError struct {
	Type string
	ID   string
	Err  error
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: new %s: %v", ErrValidationFailed, e.Type, e.Err)
	}
	return fmt.Sprintf("%s: %s/%s: %v", ErrValidationFailed, e.Type, e.ID, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidationFailed, e.Err}
}

// IsNotFound checks if an error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is ErrConflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsTypeMismatch checks if an error is ErrTypeMismatch
func IsTypeMismatch(err error) bool {
	return errors.Is(err, ErrTypeMismatch)
}

// IsInvalidOperation checks if an error is ErrInvalidOperation
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsValidationFailed checks if an error is ErrValidationFailed
func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidOperation}, args...)...)
}
