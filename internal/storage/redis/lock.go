package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/storefront-checkout/internal/domain/checkout"
)

const defaultLockTTL = 30 * time.Second

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ checkout.Locker = (*Locker)(nil)

// Locker implements checkout.Locker with SET NX PX. Locks expire after ttl
// so a crashed holder cannot block a session forever.
type Locker struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewLocker returns a Locker. A zero ttl selects the default.
func NewLocker(client goredis.UniversalClient, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Locker{client: client, ttl: ttl}
}

// Lock acquires key or returns checkout.ErrLockHeld.
func (l *Locker) Lock(ctx context.Context, key string) (checkout.UnlockFunc, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return nil, checkout.ErrLockHeld
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("redis release failed: %w", err)
		}
		return nil
	}, nil
}
