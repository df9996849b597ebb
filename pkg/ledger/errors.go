package ledger

import "errors"

// Error taxonomy for ledger operations.
//
// NotFound, Conflict, and InvalidState abort the enclosing operation and
// are returned wrapped, so callers match them with errors.Is or the
// helpers below. Procedure-submission validation errors are never part of
// this taxonomy: they are returned as data (see internal/forms).

var (
	// ErrNotFound indicates a referenced card, procedure, deliverable, or
	// evaluation ID does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a card re-created with an incompatible variant
	// for an existing (organization, slug).
	ErrConflict = errors.New("conflict")

	// ErrInvalidState indicates a lifecycle transition attempted from a
	// state that disallows it.
	ErrInvalidState = errors.New("invalid state")
)

// IsNotFound returns true if the error is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is, or wraps, ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInvalidState returns true if the error is, or wraps, ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
