package graph

import "errors"

// ErrNotFound is returned when an operation references a node or edge id
// absent from the store.
var ErrNotFound = errors.New("not found")

// ErrTypeMismatch is returned when a typed operation violates a declared
// constraint: unknown entity type, bad field name or value type, or an edge
// endpoint outside its declared node types.
var ErrTypeMismatch = errors.New("type mismatch")
