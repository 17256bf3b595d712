package dispatch

import (
	"context"

	schema "github.com/hanpama/topograph/internal/schema"
)

// Case is one branch of a typed-context dispatch block.
type Case struct {
	Type string
	Run  func(context.Context) error
}

// Switch evaluates a typed-context dispatch block against the runtime type
// of the current location: branches are tried in declared order, at most one
// matching branch executes, and def runs only when no branch matched. With
// no match and no default the block is a no-op.
func Switch(ctx context.Context, reg *schema.Registry, locationType string, cases []Case, def func(context.Context) error) error {
	for _, c := range cases {
		if reg.Conforms(locationType, c.Type) {
			return c.Run(ctx)
		}
	}
	if def != nil {
		return def(ctx)
	}
	return nil
}
