package repositorycache

import (
	"sort"
	"strings"
)

// Condition is one filter clause of a Query.
type Condition struct {
	Column   string
	Operator string // comparison operator, defaults to "="
	Value    any
	Boolean  string // combinator with the previous clause, "and" (default) or "or"
}

// Query describes the filter and shape parameters of a read operation. It
// is the cache-key input for filtered lookups: two structurally equal
// queries must land on the same key, so Query values are normalized before
// key derivation.
type Query struct {
	Conditions []Condition
	Columns    []string
	PerPage    int
}

// WhereEq appends an AND-combined equality clause.
func (q Query) WhereEq(column string, value any) Query {
	return q.WhereOp(column, "=", value)
}

// WhereOp appends an AND-combined clause with an explicit operator.
func (q Query) WhereOp(column, operator string, value any) Query {
	q.Conditions = append(q.Conditions, Condition{Column: column, Operator: operator, Value: value})
	return q
}

// OrWhereOp appends an OR-combined clause with an explicit operator.
func (q Query) OrWhereOp(column, operator string, value any) Query {
	q.Conditions = append(q.Conditions, Condition{Column: column, Operator: operator, Value: value, Boolean: "or"})
	return q
}

// normalized returns a copy with defaults applied and field order made
// stable: operators and combinators lower-cased, columns sorted and
// deduplicated. Condition order is preserved because it is semantically
// significant once AND and OR clauses mix.
func (q Query) normalized() Query {
	conditions := make([]Condition, len(q.Conditions))
	for i, cond := range q.Conditions {
		operator := strings.ToLower(strings.TrimSpace(cond.Operator))
		if operator == "" {
			operator = "="
		}
		boolean := strings.ToLower(strings.TrimSpace(cond.Boolean))
		if boolean == "" {
			boolean = "and"
		}
		conditions[i] = Condition{
			Column:   cond.Column,
			Operator: operator,
			Value:    cond.Value,
			Boolean:  boolean,
		}
	}

	return Query{
		Conditions: conditions,
		Columns:    normalizeColumns(q.Columns),
		PerPage:    q.PerPage,
	}
}

// isDefaultColumns reports whether the projection means "all columns".
func isDefaultColumns(columns []string) bool {
	if len(columns) == 0 {
		return true
	}
	return len(columns) == 1 && columns[0] == "*"
}

// normalizeColumns sorts and deduplicates a projection so that
// ("name", "email") and ("email", "name") derive the same key. A default
// projection collapses to nil.
func normalizeColumns(columns []string) []string {
	if isDefaultColumns(columns) {
		return nil
	}

	out := make([]string, len(columns))
	copy(out, columns)
	sort.Strings(out)

	deduped := out[:0]
	for i, col := range out {
		if i > 0 && col == out[i-1] {
			continue
		}
		deduped = append(deduped, col)
	}
	return deduped
}
