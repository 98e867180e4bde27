package repositorycache

import "context"

// Attributes is the column/value map applied by Create and Update.
type Attributes map[string]any

// Page is one page of records together with the total row count across
// all pages.
type Page[T any] struct {
	Records []T `json:"records"`
	Total   int `json:"total"`
	PerPage int `json:"per_page"`
}

// Repository is the data-access contract the caching decorator wraps and
// re-implements. The underlying implementation owns the canonical data;
// the decorator owns no state beyond references to its collaborators.
//
// Find must fail when no record exists under id; Delete reports whether a
// row was actually removed.
type Repository[T any] interface {
	All(ctx context.Context, columns ...string) ([]T, error)
	Where(ctx context.Context, query Query) ([]T, error)
	Paginate(ctx context.Context, perPage int, columns ...string) (Page[T], error)
	Find(ctx context.Context, id any, columns ...string) (T, error)
	Create(ctx context.Context, attrs Attributes) (T, error)
	Update(ctx context.Context, id any, attrs Attributes) (T, error)
	Delete(ctx context.Context, id any) (bool, error)
}
