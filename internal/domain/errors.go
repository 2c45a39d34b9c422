package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers unknown clans, battles and master battles.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness constraint is violated.
	ErrConflict = errors.New("already exists")
)

// ValidationError reports malformed input. It fails fast and implies no
// side effects were applied.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Detail)
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Detail: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
