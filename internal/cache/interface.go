package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// DecisionCache caches access-control decisions for a short TTL so room
// joins and message sends do not hit the database on every event.
type DecisionCache interface {
	Get(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, allowed bool, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
