package checkout

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrLockHeld is returned by Locker.Lock when another holder owns the key.
var ErrLockHeld = errors.New("lock held")

// UnlockFunc releases a lock acquired by Locker.Lock.
type UnlockFunc func(ctx context.Context) error

// Locker provides short-lived mutual exclusion keyed by string.
type Locker interface {
	Lock(ctx context.Context, key string) (UnlockFunc, error)
}

// NopLocker never blocks. Idempotency then relies only on the order
// repository's unique session constraint.
type NopLocker struct{}

var _ Locker = NopLocker{}

func (NopLocker) Lock(context.Context, string) (UnlockFunc, error) {
	return func(context.Context) error { return nil }, nil
}

func confirmLockKey(sessionID string) string {
	return "checkout:confirm:" + sessionID
}
