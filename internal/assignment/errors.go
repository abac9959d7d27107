package assignment

import "errors"

// Business-rule errors surfaced by the coordinator. Capacity rejections are
// reported as *capacity.Error so callers can read the computed totals.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("invalid input")
	ErrAlreadyAssigned = errors.New("engineer is already assigned to this project")
	ErrInvalidRole     = errors.New("user is not an engineer")
	ErrInactive        = errors.New("engineer is inactive")

	// ErrConflict means a concurrent writer modified the engineer between our
	// read and our write. The coordinator retries internally before returning
	// it; when surfaced, the whole operation is safe to re-run.
	ErrConflict = errors.New("concurrent modification, retry")
)
