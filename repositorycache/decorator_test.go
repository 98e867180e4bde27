package repositorycache_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arkade-dev/go-cache-aside/cache"
	"github.com/arkade-dev/go-cache-aside/pkg/testsupport"
	"github.com/arkade-dev/go-cache-aside/repositorycache"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// mockRepository is an in-memory Repository[User] that counts calls per
// method so tests can assert how often the cache fell through.
type mockRepository struct {
	mu    sync.Mutex
	users []User

	allCalls      int
	whereCalls    int
	paginateCalls int
	findCalls     int
	createCalls   int
	updateCalls   int
	deleteCalls   int

	failWith error
}

func newMockRepository(t *testing.T) *mockRepository {
	t.Helper()

	var users []User
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("users.json"), &users)
	return &mockRepository{users: users}
}

func (m *mockRepository) All(ctx context.Context, columns ...string) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.allCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	return slices.Clone(m.users), nil
}

func (m *mockRepository) Where(ctx context.Context, query repositorycache.Query) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.whereCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}

	var matched []User
	for _, u := range m.users {
		ok := true
		for _, cond := range query.Conditions {
			var field string
			switch strings.ToLower(cond.Column) {
			case "id":
				field = u.ID
			case "name":
				field = u.Name
			case "email":
				field = u.Email
			}
			if field != fmt.Sprintf("%v", cond.Value) {
				ok = false
			}
		}
		if ok {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

func (m *mockRepository) Paginate(ctx context.Context, perPage int, columns ...string) (repositorycache.Page[User], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paginateCalls++
	if m.failWith != nil {
		return repositorycache.Page[User]{}, m.failWith
	}

	records := slices.Clone(m.users)
	if len(records) > perPage {
		records = records[:perPage]
	}
	return repositorycache.Page[User]{
		Records: records,
		Total:   len(m.users),
		PerPage: perPage,
	}, nil
}

func (m *mockRepository) Find(ctx context.Context, id any, columns ...string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.findCalls++
	if m.failWith != nil {
		return User{}, m.failWith
	}

	for _, u := range m.users {
		if u.ID == fmt.Sprintf("%v", id) {
			return u, nil
		}
	}
	return User{}, repositorycache.ErrNotFound
}

func (m *mockRepository) Create(ctx context.Context, attrs repositorycache.Attributes) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if m.failWith != nil {
		return User{}, m.failWith
	}

	user := User{ID: testsupport.NewID()}
	if id, ok := attrs["id"].(string); ok {
		user.ID = id
	}
	if name, ok := attrs["name"].(string); ok {
		user.Name = name
	}
	if email, ok := attrs["email"].(string); ok {
		user.Email = email
	}
	m.users = append(m.users, user)
	return user, nil
}

func (m *mockRepository) Update(ctx context.Context, id any, attrs repositorycache.Attributes) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateCalls++
	if m.failWith != nil {
		return User{}, m.failWith
	}

	for i, u := range m.users {
		if u.ID != fmt.Sprintf("%v", id) {
			continue
		}
		if name, ok := attrs["name"].(string); ok {
			u.Name = name
		}
		if email, ok := attrs["email"].(string); ok {
			u.Email = email
		}
		m.users[i] = u
		return u, nil
	}
	return User{}, repositorycache.ErrNotFound
}

func (m *mockRepository) Delete(ctx context.Context, id any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteCalls++
	if m.failWith != nil {
		return false, m.failWith
	}

	for i, u := range m.users {
		if u.ID == fmt.Sprintf("%v", id) {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type harness struct {
	repo    *repositorycache.CachedRepository[User]
	base    *mockRepository
	backend *testsupport.FakeBackend
	clock   *testsupport.Clock
}

func newHarness(t *testing.T, opts ...repositorycache.Option[User]) *harness {
	t.Helper()

	clock := testsupport.NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	backend := testsupport.NewFakeBackend(clock)
	base := newMockRepository(t)
	repo := repositorycache.New[User](base, backend, cache.NewDefaultKeyBuilder(), opts...)

	return &harness{repo: repo, base: base, backend: backend, clock: clock}
}

func TestCachedRepository_Namespace(t *testing.T) {
	h := newHarness(t)
	if got := h.repo.Namespace(); got != "user" {
		t.Errorf("Namespace() = %q, want %q", got, "user")
	}

	custom := newHarness(t, repositorycache.WithNamespace[User]("accounts"))
	if got := custom.repo.Namespace(); got != "accounts" {
		t.Errorf("Namespace() = %q, want %q", got, "accounts")
	}
}

func TestCachedRepository_AllCachesResults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.repo.All(ctx)
	if err != nil {
		t.Fatalf("All() error: %v", err)
	}
	second, err := h.repo.All(ctx)
	if err != nil {
		t.Fatalf("All() second call error: %v", err)
	}

	if h.base.allCalls != 1 {
		t.Errorf("base All called %d times, want 1", h.base.allCalls)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Errorf("expected 3 users from both calls, got %d and %d", len(first), len(second))
	}
	if !slices.Contains(h.backend.Keys(), "user") {
		t.Errorf("expected bare namespace key %q, stored keys: %v", "user", h.backend.Keys())
	}
}

func TestCachedRepository_AllColumnsGetDistinctKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.repo.All(ctx); err != nil {
		t.Fatalf("All() error: %v", err)
	}
	if _, err := h.repo.All(ctx, "id", "name"); err != nil {
		t.Fatalf("All(columns) error: %v", err)
	}

	if h.base.allCalls != 2 {
		t.Errorf("base All called %d times, want 2 (distinct keys)", h.base.allCalls)
	}
	if len(h.backend.Keys()) != 2 {
		t.Errorf("expected 2 cache entries, got %v", h.backend.Keys())
	}
}

func TestCachedRepository_FindCachesUnderScalarKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user, err := h.repo.Find(ctx, "u1")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if user.Name != "Jane Doe" {
		t.Errorf("Find() returned %+v", user)
	}

	if _, err := h.repo.Find(ctx, "u1"); err != nil {
		t.Fatalf("Find() second call error: %v", err)
	}
	if h.base.findCalls != 1 {
		t.Errorf("base Find called %d times, want 1", h.base.findCalls)
	}
	if !slices.Contains(h.backend.RememberKeys, "user.u1") {
		t.Errorf("expected key %q, remembered: %v", "user.u1", h.backend.RememberKeys)
	}
}

func TestCachedRepository_PaginateKeyFormat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	page, err := h.repo.Paginate(ctx, 15)
	if err != nil {
		t.Fatalf("Paginate() error: %v", err)
	}
	if page.PerPage != 15 || page.Total != 3 {
		t.Errorf("Paginate() = %+v", page)
	}
	if !slices.Contains(h.backend.RememberKeys, "user.paginate.15") {
		t.Errorf("expected key %q, remembered: %v", "user.paginate.15", h.backend.RememberKeys)
	}

	// A narrowed projection must not share the default entry.
	if _, err := h.repo.Paginate(ctx, 15, "id"); err != nil {
		t.Fatalf("Paginate(columns) error: %v", err)
	}
	if h.base.paginateCalls != 2 {
		t.Errorf("base Paginate called %d times, want 2", h.base.paginateCalls)
	}
}

func TestCachedRepository_WhereCachesByQueryDigest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	query := repositorycache.Query{}.WhereEq("name", "Jane Doe")

	first, err := h.repo.Where(ctx, query)
	if err != nil {
		t.Fatalf("Where() error: %v", err)
	}
	if len(first) != 1 || first[0].ID != "u1" {
		t.Errorf("Where() = %+v", first)
	}

	if _, err := h.repo.Where(ctx, query); err != nil {
		t.Fatalf("Where() second call error: %v", err)
	}
	if h.base.whereCalls != 1 {
		t.Errorf("base Where called %d times, want 1", h.base.whereCalls)
	}

	// Same filter expressed with explicit defaults shares the entry.
	equivalent := repositorycache.Query{Conditions: []repositorycache.Condition{
		{Column: "name", Operator: "=", Value: "Jane Doe", Boolean: "and"},
	}}
	if _, err := h.repo.Where(ctx, equivalent); err != nil {
		t.Fatalf("Where(equivalent) error: %v", err)
	}
	if h.base.whereCalls != 1 {
		t.Errorf("equivalent query fell through, base Where called %d times", h.base.whereCalls)
	}

	other := repositorycache.Query{}.WhereEq("name", "John Smith")
	if _, err := h.repo.Where(ctx, other); err != nil {
		t.Fatalf("Where(other) error: %v", err)
	}
	if h.base.whereCalls != 2 {
		t.Errorf("distinct query should miss, base Where called %d times", h.base.whereCalls)
	}
}

func TestCachedRepository_FindWhere(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user, err := h.repo.FindBy(ctx, "email", "ada@example.com")
	if err != nil {
		t.Fatalf("FindBy() error: %v", err)
	}
	if user.ID != "u3" {
		t.Errorf("FindBy() = %+v", user)
	}

	// FindBy rides the Where cache for the same condition.
	if _, err := h.repo.Where(ctx, repositorycache.Query{}.WhereEq("email", "ada@example.com")); err != nil {
		t.Fatalf("Where() error: %v", err)
	}
	if h.base.whereCalls != 1 {
		t.Errorf("base Where called %d times, want 1", h.base.whereCalls)
	}

	_, err = h.repo.FindBy(ctx, "email", "nobody@example.com")
	if !errors.Is(err, repositorycache.ErrNotFound) {
		t.Errorf("FindBy(absent) error = %v, want ErrNotFound", err)
	}
}

func TestCachedRepository_CreateRefreshesRecordEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user, err := h.repo.Create(ctx, repositorycache.Attributes{
		"id":    "u9",
		"name":  "New User",
		"email": "new@example.com",
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if user.ID != "u9" {
		t.Errorf("Create() = %+v", user)
	}

	if !slices.Contains(h.backend.ForgetKeys, "user.u9") {
		t.Errorf("expected eviction of %q, forgot: %v", "user.u9", h.backend.ForgetKeys)
	}

	// The entry is repopulated at write time, so the follow-up Find never
	// reaches the base repository.
	found, err := h.repo.Find(ctx, "u9")
	if err != nil {
		t.Fatalf("Find() after Create error: %v", err)
	}
	if found.Name != "New User" {
		t.Errorf("Find() after Create = %+v", found)
	}
	if h.base.findCalls != 0 {
		t.Errorf("base Find called %d times, want 0", h.base.findCalls)
	}
}

func TestCachedRepository_UpdateRefreshesRecordEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Warm the entry with the pre-update state.
	if _, err := h.repo.Find(ctx, "u2"); err != nil {
		t.Fatalf("Find() error: %v", err)
	}

	updated, err := h.repo.Update(ctx, "u2", repositorycache.Attributes{"name": "Johnny Smith"})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Name != "Johnny Smith" {
		t.Errorf("Update() = %+v", updated)
	}

	found, err := h.repo.Find(ctx, "u2")
	if err != nil {
		t.Fatalf("Find() after Update error: %v", err)
	}
	if found.Name != "Johnny Smith" {
		t.Errorf("Find() after Update returned stale record: %+v", found)
	}
	if h.base.findCalls != 1 {
		t.Errorf("base Find called %d times, want 1 (warm-up only)", h.base.findCalls)
	}
}

func TestCachedRepository_DeleteEvictsRecordEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.repo.Find(ctx, "u1"); err != nil {
		t.Fatalf("Find() error: %v", err)
	}

	deleted, err := h.repo.Delete(ctx, "u1")
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if !deleted {
		t.Error("Delete() = false, want true")
	}
	if !slices.Contains(h.backend.ForgetKeys, "user.u1") {
		t.Errorf("expected eviction of %q, forgot: %v", "user.u1", h.backend.ForgetKeys)
	}

	_, err = h.repo.Find(ctx, "u1")
	if !errors.Is(err, repositorycache.ErrNotFound) {
		t.Errorf("Find() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestCachedRepository_DeleteMissingRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	forgetsBefore := len(h.backend.ForgetKeys)
	_, err := h.repo.Delete(ctx, "missing")
	if !errors.Is(err, repositorycache.ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
	if len(h.backend.ForgetKeys) != forgetsBefore {
		t.Errorf("Delete(missing) evicted keys: %v", h.backend.ForgetKeys[forgetsBefore:])
	}
}

// Writes only refresh identifier-keyed entries; list and query entries
// keep serving their cached snapshot until the TTL expires.
func TestCachedRepository_ListEntriesStayStaleAfterWrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	before, err := h.repo.All(ctx)
	if err != nil {
		t.Fatalf("All() error: %v", err)
	}

	if _, err := h.repo.Create(ctx, repositorycache.Attributes{"id": "u9", "name": "New User"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	after, err := h.repo.All(ctx)
	if err != nil {
		t.Fatalf("All() after Create error: %v", err)
	}
	if len(after) != len(before) {
		t.Errorf("list entry was invalidated by Create: %d records, want %d", len(after), len(before))
	}
	if h.base.allCalls != 1 {
		t.Errorf("base All called %d times, want 1", h.base.allCalls)
	}

	// Once the entry expires the next read sees the new record.
	h.clock.Advance(cache.DefaultTTL + time.Second)
	refreshed, err := h.repo.All(ctx)
	if err != nil {
		t.Fatalf("All() after expiry error: %v", err)
	}
	if len(refreshed) != len(before)+1 {
		t.Errorf("expired list read returned %d records, want %d", len(refreshed), len(before)+1)
	}
}

func TestCachedRepository_TTLBoundsEntryLifetime(t *testing.T) {
	h := newHarness(t, repositorycache.WithTTL[User](10*time.Second))
	ctx := context.Background()

	if _, err := h.repo.Find(ctx, "u1"); err != nil {
		t.Fatalf("Find() error: %v", err)
	}

	h.clock.Advance(5 * time.Second)
	if _, err := h.repo.Find(ctx, "u1"); err != nil {
		t.Fatalf("Find() within TTL error: %v", err)
	}
	if h.base.findCalls != 1 {
		t.Errorf("base Find called %d times within TTL, want 1", h.base.findCalls)
	}

	h.clock.Advance(6 * time.Second)
	if _, err := h.repo.Find(ctx, "u1"); err != nil {
		t.Fatalf("Find() after TTL error: %v", err)
	}
	if h.base.findCalls != 2 {
		t.Errorf("base Find called %d times after TTL, want 2", h.base.findCalls)
	}
}

func TestCachedRepository_BaseErrorsAreNotCached(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	baseErr := errors.New("connection refused")
	h.base.failWith = baseErr

	_, err := h.repo.All(ctx)
	if !errors.Is(err, baseErr) {
		t.Fatalf("All() error = %v, want %v", err, baseErr)
	}

	h.base.failWith = nil
	users, err := h.repo.All(ctx)
	if err != nil {
		t.Fatalf("All() after recovery error: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("All() after recovery returned %d users", len(users))
	}
	if h.base.allCalls != 2 {
		t.Errorf("base All called %d times, want 2", h.base.allCalls)
	}
}

func TestCachedRepository_WithIDFunc(t *testing.T) {
	h := newHarness(t, repositorycache.WithIDFunc[User](func(u User) (any, error) {
		return u.Email, nil
	}))
	ctx := context.Background()

	if _, err := h.repo.Create(ctx, repositorycache.Attributes{
		"id":    "u9",
		"email": "custom@example.com",
	}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !slices.Contains(h.backend.ForgetKeys, "user.custom@example.com") {
		t.Errorf("custom id func ignored, forgot: %v", h.backend.ForgetKeys)
	}
}
