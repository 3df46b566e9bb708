package services

import "errors"

// Domain errors surfaced to handlers. Storage failures propagate wrapped and
// map to a 503 at the HTTP layer.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("concurrent update conflict")
)

// IsRetryable reports whether the caller may safely retry the whole operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
