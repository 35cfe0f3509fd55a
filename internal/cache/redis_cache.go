package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devboard/devboard/pkg/pubsub"
)

// RedisDecisionCache implements DecisionCache on Redis.
type RedisDecisionCache struct {
	client *redis.Client
	prefix string
}

// NewRedisDecisionCache creates a Redis-backed decision cache.
func NewRedisDecisionCache(cfg pubsub.RedisConfig, prefix string) (*RedisDecisionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisDecisionCache{client: client, prefix: prefix}, nil
}

// Get returns a cached decision.
func (c *RedisDecisionCache) Get(ctx context.Context, key string) (bool, error) {
	val, err := c.client.Get(ctx, c.prefix+":"+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, ErrCacheMiss
		}
		return false, fmt.Errorf("failed to get from redis: %w", err)
	}
	return val == "1", nil
}

// Set stores a decision with a TTL.
func (c *RedisDecisionCache) Set(ctx context.Context, key string, allowed bool, ttl time.Duration) error {
	val := "0"
	if allowed {
		val = "1"
	}
	if err := c.client.Set(ctx, c.prefix+":"+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

// Delete removes a decision, forcing the next check back to the database.
func (c *RedisDecisionCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+":"+key).Err()
}

// Close closes the Redis client.
func (c *RedisDecisionCache) Close() error {
	return c.client.Close()
}
