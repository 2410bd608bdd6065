package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld is returned when releasing a lock this owner no longer holds.
var ErrNotHeld = errors.New("lock not held")

// Service is a named advisory lock with a TTL. Every scheduled sweeper
// acquires its lock before doing work so at most one process instance
// runs a given sweep at a time; the TTL guarantees forward progress if
// a holder crashes.
type Service interface {
	// Acquire tries to take the named lock for ttl. Returns false when
	// another owner currently holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release gives the lock back. Releasing a lock taken over by
	// another owner (after TTL expiry) returns ErrNotHeld.
	Release(ctx context.Context, key string) error
}
