// Package di wires the cache backend, key builder, and configuration into
// ready-to-use cached repositories.
package di

import (
	"context"
	"fmt"

	"github.com/arkade-dev/go-cache-aside/cache"
	"github.com/arkade-dev/go-cache-aside/internal/cacheinfra"
	"github.com/arkade-dev/go-cache-aside/repositorycache"
)

// Container holds the singleton cache collaborators shared by every
// cached repository it produces.
type Container struct {
	backend    cache.Backend
	keyBuilder cache.KeyBuilder
	config     Config
}

// NewContainer builds the backend selected by the configuration and sets
// up the default key builder. The context bounds backend connection setup
// (the Redis ping).
func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics {
		backend = cache.NewInstrumentedBackend(backend, cfg.Backend)
	}

	return &Container{
		backend:    backend,
		keyBuilder: cache.NewDefaultKeyBuilder(),
		config:     cfg,
	}, nil
}

// NewContainerWithDefaults loads configuration from the environment and
// builds a container from it.
func NewContainerWithDefaults(ctx context.Context) (*Container, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewContainer(ctx, cfg)
}

func newBackend(ctx context.Context, cfg Config) (cache.Backend, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return cacheinfra.NewSturdycBackend(cacheinfra.Config{
			Capacity:           cfg.Memory.Capacity,
			NumShards:          cfg.Memory.NumShards,
			TTL:                cfg.TTL,
			EvictionPercentage: cfg.Memory.EvictionPercentage,
		})
	case BackendRedis:
		return cacheinfra.NewRedisBackend(ctx, cacheinfra.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
	default:
		return nil, fmt.Errorf("di: unknown cache backend %q", cfg.Backend)
	}
}

// Backend returns the singleton cache backend instance.
func (c *Container) Backend() cache.Backend {
	return c.backend
}

// KeyBuilder returns the singleton key builder instance.
func (c *Container) KeyBuilder() cache.KeyBuilder {
	return c.keyBuilder
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config {
	return c.config
}

// NewCachedRepository wraps base with caching using the container's
// collaborators and TTL. Since Go methods cannot have type parameters,
// this is provided as a package-level function.
func NewCachedRepository[T any](container *Container, base repositorycache.Repository[T], opts ...repositorycache.Option[T]) *repositorycache.CachedRepository[T] {
	withTTL := append(
		[]repositorycache.Option[T]{repositorycache.WithTTL[T](container.config.TTL)},
		opts...,
	)
	return repositorycache.New(base, container.backend, container.keyBuilder, withTTL...)
}
