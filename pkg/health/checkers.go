package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
)

// GoroutineCountCheck fails when more than max goroutines are running.
func GoroutineCountCheck(max int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > max {
			return errors.Errorf("%d goroutines running, limit %d", n, max)
		}
		return nil
	}
}

// Pinger is implemented by *pgxpool.Pool, the Mongo cart repository, the
// Kafka publisher and the payment provider.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps p.Ping.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// RedisCheck issues PING.
func RedisCheck(client goredis.UniversalClient) CheckFunc {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "redis ping")
		}
		return nil
	}
}
