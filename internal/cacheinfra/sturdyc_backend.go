package cacheinfra

import (
	"context"
	"errors"
	"time"

	"github.com/viccon/sturdyc"
)

// ErrEntryNotFound is returned by Get when no entry exists under the
// requested key. The cache package re-exports it as ErrEntryNotFound.
var ErrEntryNotFound = errors.New("cache: entry not found")

// Config holds the configuration for the sturdyc-backed in-memory cache.
type Config struct {
	// Capacity defines the maximum number of entries the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent
	// access. Higher values improve concurrency but increase memory
	// overhead. Must be greater than 0.
	NumShards int

	// TTL is the time-to-live applied to cached entries. sturdyc enforces
	// a single client-level TTL, so this value must match the TTL the
	// repository decorator is configured with; the di container wires both
	// from the same setting. Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired
	// entries. Zero value uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                30 * time.Second,
		EvictionPercentage: 10,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// sturdycBackend adapts a sturdyc client to the cache.Backend contract.
// Values stay in process memory, so no serialization round-trip happens
// and Get returns the originally stored value.
type sturdycBackend struct {
	client *sturdyc.Client[any]
	ttl    time.Duration
}

// NewSturdycBackend creates the in-memory backend. The sturdyc client owns
// entry expiry: entries older than the configured TTL are no longer
// returned and are eventually evicted.
func NewSturdycBackend(cfg Config) (*sturdycBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var options []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		options...,
	)

	return &sturdycBackend{client: client, ttl: cfg.TTL}, nil
}

// Has reports whether an unexpired entry exists under key.
func (b *sturdycBackend) Has(ctx context.Context, key string) (bool, error) {
	_, ok := b.client.Get(key)
	return ok, nil
}

// Get returns the stored value, or ErrEntryNotFound when the key is absent
// or expired.
func (b *sturdycBackend) Get(ctx context.Context, key string) (any, error) {
	value, ok := b.client.Get(key)
	if !ok {
		return nil, ErrEntryNotFound
	}
	return value, nil
}

// Remember returns the cached value when present; otherwise it runs
// produce, stores the result, and returns it. The ttl argument must not
// exceed the client-level TTL the backend was constructed with; sturdyc
// applies the client TTL to every entry.
func (b *sturdycBackend) Remember(ctx context.Context, key string, ttl time.Duration, produce func(ctx context.Context) (any, error)) (any, error) {
	if ttl > b.ttl {
		return nil, &ConfigError{Field: "TTL", Message: "requested entry TTL exceeds the backend TTL"}
	}
	return b.client.GetOrFetch(ctx, key, produce)
}

// Forget removes the entry and reports whether one was present.
func (b *sturdycBackend) Forget(ctx context.Context, key string) (bool, error) {
	_, existed := b.client.Get(key)
	b.client.Delete(key)
	return existed, nil
}
