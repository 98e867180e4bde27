package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultTTL is the entry lifetime applied when no TTL has been configured.
const DefaultTTL = 30 * time.Second

// ProduceFn computes a fresh value when Remember finds no entry under a
// key. It is an alias so backend implementations in internal/cacheinfra
// can satisfy Backend without importing this package.
type ProduceFn = func(ctx context.Context) (any, error)

// FetchFn is the typed producer signature used with RememberTyped.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Backend is the key/value contract the repository decorator coordinates
// against. Implementations own entry storage and expiry enforcement; the
// decorator never tracks entries itself.
//
// Remember is compute-if-absent: return the stored value when the key is
// present, otherwise invoke produce, store the result under the key with
// the given TTL, and return it. Forget reports whether an entry was
// actually removed. Get on an absent key returns ErrEntryNotFound.
type Backend interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (any, error)
	Remember(ctx context.Context, key string, ttl time.Duration, produce ProduceFn) (any, error)
	Forget(ctx context.Context, key string) (bool, error)
}

// RememberTyped adapts Backend.Remember to a concrete value type. Backends
// that keep values in process memory return them as-is; backends that
// persist serialized payloads (e.g. Redis) return raw bytes which are
// decoded here. A present entry that cannot be decoded into T is a hard
// DecodeError, never a silent refetch from the source of truth.
func RememberTyped[T any](ctx context.Context, backend Backend, key string, ttl time.Duration, fetch FetchFn[T]) (T, error) {
	result, err := backend.Remember(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeValue[T](key, result)
}

// GetTyped reads an existing entry and decodes it into T. The key must be
// present; absence surfaces as ErrEntryNotFound from the backend.
func GetTyped[T any](ctx context.Context, backend Backend, key string) (T, error) {
	result, err := backend.Get(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeValue[T](key, result)
}

func decodeValue[T any](key string, value any) (T, error) {
	var zero T
	if value == nil {
		return zero, nil
	}
	if v, ok := value.(T); ok {
		return v, nil
	}
	raw, ok := value.([]byte)
	if !ok {
		return zero, &DecodeError{Key: key, Message: fmt.Sprintf("cached value has unexpected type %T", value)}
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, &DecodeError{Key: key, Message: "cached payload is not valid JSON", Cause: err}
	}
	return v, nil
}
