package errors

import "fmt"

// Categories. Specific errors wrap one of them so callers can test either level.
var (
	ErrValidation       = fmt.Errorf("validation error")
	ErrPersistence      = fmt.Errorf("persistence error")
	ErrSubscription     = fmt.Errorf("subscription error")
	ErrScopeUnavailable = fmt.Errorf("scope unavailable")
	// ErrMergeConflict is internal: a duplicate id is resolved by the idempotent merge.
	ErrMergeConflict = fmt.Errorf("merge conflict")
)

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrBlankContent     = fmt.Errorf("%w: content is blank", ErrValidation)
	ErrContentTooLong   = fmt.Errorf("%w: content is too long", ErrValidation)
	ErrMissingScope     = fmt.Errorf("%w: scope identity is missing", ErrValidation)
	ErrMissingSender    = fmt.Errorf("%w: sender is missing", ErrValidation)
	ErrSenderNotInScope = fmt.Errorf("%w: sender is not a member of the private scope", ErrValidation)
	ErrInvalidMessage   = fmt.Errorf("%w: invalid message", ErrValidation)
	ErrMissingObserver  = fmt.Errorf("%w: observer is missing", ErrValidation)
	ErrFeedClosed       = fmt.Errorf("%w: change feed closed", ErrSubscription)
	ErrFetchTimeout     = fmt.Errorf("%w: initial fetch timed out", ErrSubscription)
	ErrUnknownDriver    = fmt.Errorf("unknown store driver")
	ErrInvalidToken     = fmt.Errorf("invalid or expired token")
	ErrMissingIdentity  = fmt.Errorf("%w: caller identity is missing", ErrValidation)
	ErrCorruptedRecord  = fmt.Errorf("corrupted record")
	ErrUnsupportedScope = fmt.Errorf("%w: unsupported scope", ErrValidation)
)

// Persistence wraps a store failure, keeping the cause reachable through errors.Is.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// Subscription wraps a feed failure.
func Subscription(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrSubscription, err)
}
