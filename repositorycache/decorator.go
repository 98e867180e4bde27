package repositorycache

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/arkade-dev/go-cache-aside/cache"
)

// Interface assertion to ensure CachedRepository implements Repository[T]
var _ Repository[any] = (*CachedRepository[any])(nil)

// CachedRepository decorates a base repository with cache-aside behaviour:
// reads go through the cache backend, writes delegate to the base first
// and then refresh the identifier-keyed entry for the affected record.
//
// The decorator is stateless across calls. It holds no entries and no
// locks; expiry belongs to the backend, canonical data to the base
// repository. Two concurrent misses on the same key may both hit the base
// repository, which is acceptable for idempotent reads.
type CachedRepository[T any] struct {
	base      Repository[T]
	backend   cache.Backend
	keys      cache.KeyBuilder
	namespace string
	ttl       time.Duration
	idFn      func(T) (any, error)
}

// Option configures a CachedRepository.
type Option[T any] func(*CachedRepository[T])

// WithNamespace overrides the cache namespace derived from the entity
// type name.
func WithNamespace[T any](namespace string) Option[T] {
	return func(c *CachedRepository[T]) {
		c.namespace = namespace
	}
}

// WithTTL overrides the default entry lifetime.
func WithTTL[T any](ttl time.Duration) Option[T] {
	return func(c *CachedRepository[T]) {
		c.ttl = ttl
	}
}

// WithIDFunc overrides the reflection-based primary key extraction used
// when refreshing entries after writes.
func WithIDFunc[T any](fn func(T) (any, error)) Option[T] {
	return func(c *CachedRepository[T]) {
		c.idFn = fn
	}
}

// New creates a CachedRepository that wraps base with caching. The
// namespace defaults to the snake_case entity type name and the TTL to
// cache.DefaultTTL.
func New[T any](base Repository[T], backend cache.Backend, keys cache.KeyBuilder, opts ...Option[T]) *CachedRepository[T] {
	c := &CachedRepository[T]{
		base:      base,
		backend:   backend,
		keys:      keys,
		namespace: namespaceFor[T](),
		ttl:       cache.DefaultTTL,
		idFn:      extractID[T],
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Namespace returns the cache namespace entries are keyed under.
func (c *CachedRepository[T]) Namespace() string { return c.namespace }

// All retrieves every record, with caching. The default projection keys
// on the bare namespace; a narrower projection participates in the key so
// it never shadows the full-column entry.
func (c *CachedRepository[T]) All(ctx context.Context, columns ...string) ([]T, error) {
	var suffix any
	if !isDefaultColumns(columns) {
		suffix = struct{ Columns []string }{normalizeColumns(columns)}
	}

	key, err := c.keys.Build(c.namespace, suffix)
	if err != nil {
		return nil, err
	}

	return cache.RememberTyped(ctx, c.backend, key, c.ttl, func(ctx context.Context) ([]T, error) {
		return c.base.All(ctx, columns...)
	})
}

// Where retrieves the records matching query, with caching. The key is a
// digest of the normalized query, so the key space stays open for
// arbitrary ad-hoc filters without collisions.
func (c *CachedRepository[T]) Where(ctx context.Context, query Query) ([]T, error) {
	key, err := c.keys.Build(c.namespace, query.normalized())
	if err != nil {
		return nil, err
	}

	return cache.RememberTyped(ctx, c.backend, key, c.ttl, func(ctx context.Context) ([]T, error) {
		return c.base.Where(ctx, query)
	})
}

// Paginate retrieves one page of records, with caching.
func (c *CachedRepository[T]) Paginate(ctx context.Context, perPage int, columns ...string) (Page[T], error) {
	var suffix any = fmt.Sprintf("paginate.%d", perPage)
	if !isDefaultColumns(columns) {
		suffix = struct {
			PerPage int
			Columns []string
		}{perPage, normalizeColumns(columns)}
	}

	key, err := c.keys.Build(c.namespace, suffix)
	if err != nil {
		return Page[T]{}, err
	}

	return cache.RememberTyped(ctx, c.backend, key, c.ttl, func(ctx context.Context) (Page[T], error) {
		return c.base.Paginate(ctx, perPage, columns...)
	})
}

// Find retrieves a record by identifier, with caching under the scalar
// identifier key.
func (c *CachedRepository[T]) Find(ctx context.Context, id any, columns ...string) (T, error) {
	var suffix any = id
	if !isDefaultColumns(columns) {
		suffix = struct {
			ID      any
			Columns []string
		}{id, normalizeColumns(columns)}
	}

	key, err := c.keys.Build(c.namespace, suffix)
	if err != nil {
		var zero T
		return zero, err
	}

	return cache.RememberTyped(ctx, c.backend, key, c.ttl, func(ctx context.Context) (T, error) {
		return c.base.Find(ctx, id, columns...)
	})
}

// FindBy retrieves the first record whose column equals value. It is
// defined in terms of Where and inherits its caching; no separate entry
// is written for the same logical condition.
func (c *CachedRepository[T]) FindBy(ctx context.Context, column string, value any, columns ...string) (T, error) {
	query := Query{}.WhereEq(column, value)
	return c.FindWhere(ctx, query, columns...)
}

// FindWhere retrieves the first record matching query, transitively
// cached through Where. Returns ErrNotFound when nothing matches.
func (c *CachedRepository[T]) FindWhere(ctx context.Context, query Query, columns ...string) (T, error) {
	if !isDefaultColumns(columns) {
		query.Columns = columns
	}

	records, err := c.Where(ctx, query)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(records) == 0 {
		var zero T
		return zero, ErrNotFound
	}
	return records[0], nil
}

// Create inserts a record through the base repository. On success the
// identifier-keyed entry for the new record is evicted and repopulated
// with the fresh record, so identifier lookups stay warm and never stale.
// List and query entries are deliberately left alone; they age out via
// TTL.
func (c *CachedRepository[T]) Create(ctx context.Context, attrs Attributes) (T, error) {
	record, err := c.base.Create(ctx, attrs)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := c.refreshRecord(ctx, record); err != nil {
		var zero T
		return zero, err
	}
	return record, nil
}

// Update modifies a record through the base repository, then evicts and
// repopulates the identifier-keyed entry derived from the returned
// record's primary key.
func (c *CachedRepository[T]) Update(ctx context.Context, id any, attrs Attributes) (T, error) {
	record, err := c.base.Update(ctx, id, attrs)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := c.refreshRecord(ctx, record); err != nil {
		var zero T
		return zero, err
	}
	return record, nil
}

// Delete resolves the record first, so a missing identifier propagates
// before any cache mutation. It then forgets the identifier-keyed entry
// and delegates the deletion.
func (c *CachedRepository[T]) Delete(ctx context.Context, id any) (bool, error) {
	if _, err := c.base.Find(ctx, id); err != nil {
		return false, err
	}

	key, err := c.keys.Build(c.namespace, id)
	if err != nil {
		return false, err
	}
	if _, err := c.backend.Forget(ctx, key); err != nil {
		return false, err
	}

	return c.base.Delete(ctx, id)
}

// refreshRecord evicts the identifier-keyed entry for record and
// immediately repopulates it under the standard TTL.
func (c *CachedRepository[T]) refreshRecord(ctx context.Context, record T) error {
	id, err := c.idFn(record)
	if err != nil {
		return err
	}

	key, err := c.keys.Build(c.namespace, id)
	if err != nil {
		return err
	}

	if _, err := c.backend.Forget(ctx, key); err != nil {
		return err
	}

	_, err = cache.RememberTyped(ctx, c.backend, key, c.ttl, func(ctx context.Context) (T, error) {
		return record, nil
	})
	return err
}

// extractID pulls the primary key out of a record using reflection,
// trying the common field names.
func extractID[T any](record T) (any, error) {
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("cannot extract ID from nil record")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot extract ID from %s record", v.Kind())
	}

	for _, fieldName := range []string{"ID", "Id"} {
		field := v.FieldByName(fieldName)
		if field.IsValid() && field.CanInterface() {
			return field.Interface(), nil
		}
	}
	return nil, fmt.Errorf("no ID field found in record")
}
