package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/devboard/devboard/pkg/database"
	"github.com/devboard/devboard/pkg/log"
	"github.com/devboard/devboard/pkg/pubsub"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  database.Config `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	PubSub    pubsub.Config   `mapstructure:"pubsub"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Log       log.Config      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type AuthConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessDuration  time.Duration `mapstructure:"access_duration"`
	RefreshDuration time.Duration `mapstructure:"refresh_duration"`
	Issuer          string        `mapstructure:"issuer"`
}

// CacheConfig configures the access-decision cache. When disabled,
// every room join and message send hits the database.
type CacheConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	TTL     time.Duration     `mapstructure:"ttl"`
	Redis   pubsub.RedisConfig `mapstructure:"redis"`
}

// KafkaConfig configures the optional message archive producer.
type KafkaConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Brokers    string `mapstructure:"brokers"`
	Topic      string `mapstructure:"topic"`
	Partitions int    `mapstructure:"partitions"`
}

type ChatConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
	MaxCallPeers int `mapstructure:"max_call_peers"`
}

// Load reads configuration from ./config/config.yaml and the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.secret", "JWT_SECRET")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("cache.redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file: rely on defaults and env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Auth.AccessDuration = parseDuration(v, "auth.access_duration", 15*time.Minute)
	cfg.Auth.RefreshDuration = parseDuration(v, "auth.refresh_duration", 7*24*time.Hour)
	cfg.Cache.TTL = parseDuration(v, "cache.ttl", 30*time.Second)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("auth.secret", "devboard-secret")
	v.SetDefault("auth.access_duration", "15m")
	v.SetDefault("auth.refresh_duration", "168h")
	v.SetDefault("auth.issuer", "devboard")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "devboard.db")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("pubsub.driver", "memory")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "devboard-messages")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("chat.history_limit", 30)
	v.SetDefault("chat.max_call_peers", 2)
	v.SetDefault("log.level", "info")
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
