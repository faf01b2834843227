package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

var ErrCacheMiss = errors.New("cache: key not found")

// BytesCache stores raw bytes with a TTL. A zero TTL means no expiry.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Config struct {
	// Backend is "memory", "redis" or "none".
	Backend   string        `envconfig:"CANDLE_CACHE_BACKEND" default:"memory"`
	TTL       time.Duration `envconfig:"CANDLE_CACHE_TTL" default:"30s"`
	RedisAddr string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPass string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB   int           `envconfig:"REDIS_DB" default:"0"`
	Prefix    string        `envconfig:"CACHE_PREFIX" default:"tradingcore"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// NewFromConfig builds the configured store. Returns (nil, nil) for backend "none".
func NewFromConfig(cfg Config) (BytesCache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewTTLCache(), nil
	case "redis":
		rc, err := NewRedisCache(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
			Prefix:   cfg.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return rc, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
