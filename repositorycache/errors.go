package repositorycache

import "errors"

// ErrNotFound is returned by FindBy and FindWhere when no record matches
// the condition.
var ErrNotFound = errors.New("repositorycache: no matching record")
