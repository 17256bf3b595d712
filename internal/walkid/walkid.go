// Package walkid carries the active walker's instance id through
// context.Context so event subscribers can correlate lifecycle events.
package walkid

import (
	"context"

	"github.com/google/uuid"
)

// key is the context key for the walker id.
type key struct{}

// NewContext returns a copy of parent with a fresh walker id stored.
// It also returns the generated id.
func NewContext(parent context.Context) (context.Context, uuid.UUID) {
	id := uuid.New()
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the walker id from ctx.
// It returns the id and whether it was present.
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	v := ctx.Value(key{})
	id, ok := v.(uuid.UUID)
	return id, ok
}
