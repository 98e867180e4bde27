package cacheinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings for the Redis-backed cache.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Validate checks if the configuration values are valid.
func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return &ConfigError{Field: "Addr", Message: "must not be empty"}
	}
	return nil
}

// redisBackend adapts a Redis client to the cache.Backend contract.
// Values are stored as JSON payloads; Get and Remember hand the raw bytes
// back to the caller, which decodes them into the expected type.
type redisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to Redis and verifies the connection with a
// ping before returning the backend.
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*redisBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	slog.Info("redis cache backend connected", "addr", cfg.Addr, "db", cfg.DB)

	return &redisBackend{client: client}, nil
}

// NewRedisBackendWithClient wraps an existing client. Used by tests.
func NewRedisBackendWithClient(client *redis.Client) *redisBackend {
	return &redisBackend{client: client}
}

// Has reports whether key exists, without reading the payload.
func (b *redisBackend) Has(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %q: %w", key, err)
	}
	return n > 0, nil
}

// Get returns the stored JSON payload as raw bytes, or ErrEntryNotFound
// when the key is absent or expired.
func (b *redisBackend) Get(ctx context.Context, key string) (any, error) {
	payload, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return payload, nil
}

// Remember returns the stored payload when the key is present; otherwise
// it runs produce, stores the JSON-encoded result with the given TTL, and
// returns the produced value directly so the first caller skips a decode
// round-trip. Concurrent misses may both produce; the last SET wins, which
// is acceptable for idempotent reads.
func (b *redisBackend) Remember(ctx context.Context, key string, ttl time.Duration, produce func(ctx context.Context) (any, error)) (any, error) {
	payload, err := b.client.Get(ctx, key).Bytes()
	if err == nil {
		return payload, nil
	}
	if err != redis.Nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}

	value, err := produce(ctx)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry %q: %w", key, err)
	}

	if err := b.client.Set(ctx, key, encoded, ttl).Err(); err != nil {
		return nil, fmt.Errorf("redis set %q: %w", key, err)
	}

	return value, nil
}

// Forget removes the entry and reports whether one was present.
func (b *redisBackend) Forget(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis del %q: %w", key, err)
	}
	return n > 0, nil
}
