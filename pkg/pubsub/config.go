package pubsub

import (
	"fmt"
	"time"
)

// Config holds the configuration for the pub/sub system.
type Config struct {
	Driver string      `mapstructure:"driver"` // "memory", "redis"
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns the default configuration: an in-process bus,
// suitable for a single server instance. Use the redis driver when
// running more than one instance behind a load balancer.
func DefaultConfig() Config {
	return Config{
		Driver: "memory",
		Redis: RedisConfig{
			Address:      "localhost:6379",
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

// New creates a PubSub instance based on the configuration.
func New(cfg Config) (PubSub, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedisPubSub(cfg.Redis)
	case "memory", "":
		return NewMemoryPubSub(), nil
	default:
		return nil, fmt.Errorf("unsupported pubsub driver: %s", cfg.Driver)
	}
}
