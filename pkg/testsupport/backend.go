package testsupport

import (
	"context"
	"sync"
	"time"

	"github.com/arkade-dev/go-cache-aside/cache"
)

// Clock is a controllable time source for expiry tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fake time forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ cache.Backend = (*FakeBackend)(nil)

type fakeEntry struct {
	value     any
	expiresAt time.Time
}

// FakeBackend is an in-memory cache.Backend honoring per-entry TTLs
// against a fake Clock. It records the keys of Remember and Forget calls
// so tests can assert on cache traffic.
type FakeBackend struct {
	mu      sync.Mutex
	clock   *Clock
	entries map[string]fakeEntry

	RememberKeys []string
	ForgetKeys   []string
}

// NewFakeBackend creates an empty FakeBackend on clock.
func NewFakeBackend(clock *Clock) *FakeBackend {
	return &FakeBackend{
		clock:   clock,
		entries: make(map[string]fakeEntry),
	}
}

func (b *FakeBackend) lookup(key string) (any, bool) {
	entry, ok := b.entries[key]
	if !ok {
		return nil, false
	}
	if b.clock.Now().After(entry.expiresAt) {
		delete(b.entries, key)
		return nil, false
	}
	return entry.value, true
}

// Has implements cache.Backend.
func (b *FakeBackend) Has(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.lookup(key)
	return ok, nil
}

// Get implements cache.Backend.
func (b *FakeBackend) Get(ctx context.Context, key string) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	value, ok := b.lookup(key)
	if !ok {
		return nil, cache.ErrEntryNotFound
	}
	return value, nil
}

// Remember implements cache.Backend.
func (b *FakeBackend) Remember(ctx context.Context, key string, ttl time.Duration, produce cache.ProduceFn) (any, error) {
	b.mu.Lock()
	b.RememberKeys = append(b.RememberKeys, key)
	if value, ok := b.lookup(key); ok {
		b.mu.Unlock()
		return value, nil
	}
	b.mu.Unlock()

	value, err := produce(ctx)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.entries[key] = fakeEntry{value: value, expiresAt: b.clock.Now().Add(ttl)}
	b.mu.Unlock()
	return value, nil
}

// Forget implements cache.Backend.
func (b *FakeBackend) Forget(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ForgetKeys = append(b.ForgetKeys, key)
	_, ok := b.lookup(key)
	delete(b.entries, key)
	return ok, nil
}

// Keys returns the unexpired keys currently stored.
func (b *FakeBackend) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var keys []string
	for key := range b.entries {
		if _, ok := b.lookup(key); ok {
			keys = append(keys, key)
		}
	}
	return keys
}
