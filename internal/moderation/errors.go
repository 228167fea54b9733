package moderation

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated   = errors.New("must be signed in")
	ErrMissingField      = errors.New("missing required fields")
	ErrInvalidReason     = errors.New("invalid flag reason")
	ErrInvalidTimeWasted = errors.New("time wasted must be between 1 minute and a year")
	ErrNotFound          = errors.New("submission not found")
	ErrDuplicateAction   = errors.New("action already performed")
	ErrStoreFailure      = errors.New("store failure")
)

func storeFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}

// IsBusinessError reports whether err is a user-facing precondition failure
// rather than a storage problem.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidReason) ||
		errors.Is(err, ErrInvalidTimeWasted) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicateAction)
}
