package domain

import "errors"

var (
	// ErrValidation matches every ValidationError through errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrCategoryNotFound is returned by question loaders for unknown categories.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrStoreUnavailable is returned when the score store cannot be reached.
	ErrStoreUnavailable = errors.New("score store unavailable")
	// ErrSessionNotFound is returned when a client reattaches to an unknown session.
	ErrSessionNotFound = errors.New("game session not found")
)

// ValidationError rejects a start request; it is shown to the player.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
