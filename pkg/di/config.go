package di

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Backend selector values for Config.Backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the deployment-facing configuration surface. Every field has a
// working default; the single tunable most deployments touch is the entry
// TTL.
type Config struct {
	// TTL is the lifetime applied to every cache entry.
	TTL time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	// Backend selects the cache backend implementation.
	Backend string `envconfig:"CACHE_BACKEND" default:"memory"`

	// Metrics wraps the backend with Prometheus instrumentation.
	Metrics bool `envconfig:"CACHE_METRICS" default:"false"`

	Memory MemoryConfig
	Redis  RedisConfig
}

// MemoryConfig tunes the in-memory backend.
type MemoryConfig struct {
	Capacity           int `envconfig:"CACHE_MEMORY_CAPACITY" default:"10000"`
	NumShards          int `envconfig:"CACHE_MEMORY_SHARDS" default:"256"`
	EvictionPercentage int `envconfig:"CACHE_MEMORY_EVICTION_PERCENTAGE" default:"10"`
}

// RedisConfig tunes the Redis backend.
type RedisConfig struct {
	Addr         string        `envconfig:"CACHE_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"CACHE_REDIS_PASSWORD" default:""`
	DB           int           `envconfig:"CACHE_REDIS_DB" default:"0"`
	DialTimeout  time.Duration `envconfig:"CACHE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CACHE_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"CACHE_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// LoadConfig reads configuration from the environment, falling back to
// the struct-tag defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
