// Package bunrepo provides a reference Repository implementation backed
// by uptrace/bun, suitable for wrapping with repositorycache. Attribute
// maps are applied through the entity's JSON tags, so attribute keys match
// the JSON field names of T.
package bunrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/arkade-dev/go-cache-aside/repositorycache"
)

// Interface assertion to ensure Repository implements the repository contract
var _ repositorycache.Repository[any] = (*Repository[any])(nil)

// allowedOperators bounds the comparison operators accepted in Where
// clauses. Conditions carry caller-supplied operator strings; anything
// outside this set is rejected instead of being interpolated into SQL.
var allowedOperators = map[string]struct{}{
	"=": {}, "!=": {}, "<>": {},
	"<": {}, "<=": {}, ">": {}, ">=": {},
	"like": {}, "not like": {},
}

// Repository is a generic bun-backed repository. T must be a struct with
// bun model tags and a string primary key field named ID.
type Repository[T any] struct {
	db *bun.DB
	pk string
}

// New creates a Repository on db. The primary key column defaults to "id".
func New[T any](db *bun.DB) *Repository[T] {
	return &Repository[T]{db: db, pk: "id"}
}

// WithPrimaryKey overrides the primary key column name.
func (r *Repository[T]) WithPrimaryKey(column string) *Repository[T] {
	r.pk = column
	return r
}

// All returns every record, optionally projected to the given columns.
func (r *Repository[T]) All(ctx context.Context, columns ...string) ([]T, error) {
	var models []T
	q := r.db.NewSelect().Model(&models)
	if len(columns) > 0 && !(len(columns) == 1 && columns[0] == "*") {
		q = q.Column(columns...)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bunrepo: select all: %w", err)
	}
	return models, nil
}

// Where returns the records matching the query's conditions.
func (r *Repository[T]) Where(ctx context.Context, query repositorycache.Query) ([]T, error) {
	var models []T
	q := r.db.NewSelect().Model(&models)
	if len(query.Columns) > 0 {
		q = q.Column(query.Columns...)
	}

	q, err := applyConditions(q, query.Conditions)
	if err != nil {
		return nil, err
	}
	if query.PerPage > 0 {
		q = q.Limit(query.PerPage)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bunrepo: select where: %w", err)
	}
	return models, nil
}

// Paginate returns the first page of perPage records plus the total count.
func (r *Repository[T]) Paginate(ctx context.Context, perPage int, columns ...string) (repositorycache.Page[T], error) {
	var models []T
	q := r.db.NewSelect().Model(&models)
	if len(columns) > 0 && !(len(columns) == 1 && columns[0] == "*") {
		q = q.Column(columns...)
	}

	total, err := q.Limit(perPage).ScanAndCount(ctx)
	if err != nil {
		return repositorycache.Page[T]{}, fmt.Errorf("bunrepo: paginate: %w", err)
	}

	return repositorycache.Page[T]{Records: models, Total: total, PerPage: perPage}, nil
}

// Find returns the record under id, or an error when none exists.
func (r *Repository[T]) Find(ctx context.Context, id any, columns ...string) (T, error) {
	var model T
	q := r.db.NewSelect().Model(&model).Where("? = ?", bun.Ident(r.pk), id)
	if len(columns) > 0 && !(len(columns) == 1 && columns[0] == "*") {
		q = q.Column(columns...)
	}

	if err := q.Scan(ctx); err != nil {
		var zero T
		if err == sql.ErrNoRows {
			return zero, fmt.Errorf("bunrepo: record %v not found: %w", id, err)
		}
		return zero, fmt.Errorf("bunrepo: find: %w", err)
	}
	return model, nil
}

// Create inserts a new record from the attribute map. A missing or empty
// string ID field is populated with a fresh uuid.
func (r *Repository[T]) Create(ctx context.Context, attrs repositorycache.Attributes) (T, error) {
	var model T
	if err := applyAttributes(&model, attrs); err != nil {
		var zero T
		return zero, err
	}
	ensureID(&model)

	if _, err := r.db.NewInsert().Model(&model).Exec(ctx); err != nil {
		var zero T
		return zero, fmt.Errorf("bunrepo: insert: %w", err)
	}
	return model, nil
}

// Update applies the attribute map on top of the stored record and writes
// it back. The record must exist.
func (r *Repository[T]) Update(ctx context.Context, id any, attrs repositorycache.Attributes) (T, error) {
	model, err := r.Find(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := applyAttributes(&model, attrs); err != nil {
		var zero T
		return zero, err
	}

	if _, err := r.db.NewUpdate().Model(&model).Where("? = ?", bun.Ident(r.pk), id).Exec(ctx); err != nil {
		var zero T
		return zero, fmt.Errorf("bunrepo: update: %w", err)
	}
	return model, nil
}

// Delete removes the record under id, reporting whether a row was removed.
func (r *Repository[T]) Delete(ctx context.Context, id any) (bool, error) {
	res, err := r.db.NewDelete().Model((*T)(nil)).Where("? = ?", bun.Ident(r.pk), id).Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("bunrepo: delete: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bunrepo: delete rows affected: %w", err)
	}
	return rows > 0, nil
}

func applyConditions(q *bun.SelectQuery, conditions []repositorycache.Condition) (*bun.SelectQuery, error) {
	for _, cond := range conditions {
		operator := cond.Operator
		if operator == "" {
			operator = "="
		}
		if _, ok := allowedOperators[operator]; !ok {
			return nil, fmt.Errorf("bunrepo: unsupported operator %q", cond.Operator)
		}

		expr := "? " + operator + " ?"
		if cond.Boolean == "or" {
			q = q.WhereOr(expr, bun.Ident(cond.Column), cond.Value)
		} else {
			q = q.Where(expr, bun.Ident(cond.Column), cond.Value)
		}
	}
	return q, nil
}

// applyAttributes merges an attribute map into model through its JSON
// representation.
func applyAttributes[T any](model *T, attrs repositorycache.Attributes) error {
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("bunrepo: encode attributes: %w", err)
	}
	if err := json.Unmarshal(encoded, model); err != nil {
		return fmt.Errorf("bunrepo: apply attributes: %w", err)
	}
	return nil
}

// ensureID assigns a fresh uuid to an empty string ID field.
func ensureID[T any](model *T) {
	v := reflect.ValueOf(model).Elem()
	if v.Kind() != reflect.Struct {
		return
	}

	field := v.FieldByName("ID")
	if field.IsValid() && field.Kind() == reflect.String && field.CanSet() && field.String() == "" {
		field.SetString(uuid.NewString())
	}
}
