package ports

import "errors"

var (
	// ErrStoreUnavailable marks a store call that failed for transient reasons (timeout,
	// connection loss, serialization conflict). The same conditional write is safe to retry.
	ErrStoreUnavailable = errors.New("order store is unavailable")

	// ErrBusUnavailable marks an event bus that cannot accept subscriptions right now.
	ErrBusUnavailable = errors.New("event bus is unavailable")

	// ErrNoTransaction is returned by Commit and Rollback without an active transaction.
	ErrNoTransaction = errors.New("no active transaction")
)
