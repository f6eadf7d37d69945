package account

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("account: not found")
	ErrConflict         = errors.New("account: conflict")
	ErrInvalidInput     = errors.New("account: invalid input")
	ErrPermissionDenied = errors.New("account: permission denied")

	// ErrOperationFailed is the generic result for unexpected failures
	// inside a transactional body. The original error is logged, rolled
	// back and never surfaced to the caller.
	ErrOperationFailed = errors.New("account: operation failed")
)

// Conflict variants.
var (
	ErrEmailExists    = fmt.Errorf("%w: email already exists", ErrConflict)
	ErrUsernameExists = fmt.Errorf("%w: username already exists", ErrConflict)
	ErrRoleCodeExists = fmt.Errorf("%w: role code already exists", ErrConflict)
	ErrRoleAssigned   = fmt.Errorf("%w: role already assigned", ErrConflict)
	ErrAlreadyDeleted = fmt.Errorf("%w: user already deleted", ErrConflict)
)

// ErrNotDeleted is returned by Restore when the user is not currently
// soft-deleted.
var ErrNotDeleted = fmt.Errorf("%w: user is not deleted", ErrInvalidInput)

// Transaction-state errors indicate a usage bug in the orchestration, not
// a recoverable condition. They are returned loudly and never retried.
var (
	ErrTransactionStarted = errors.New("account: transaction already started")
	ErrNoTransaction      = errors.New("account: no active transaction")
)

// isDomainError reports whether err carries one of the typed failure
// results that may be returned to callers as-is.
func isDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrPermissionDenied)
}
