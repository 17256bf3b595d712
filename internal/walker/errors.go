package walker

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	graph "github.com/hanpama/topograph/internal/graph"
)

func fmtErrNoField(typeName, field string) error {
	return fmt.Errorf("walker %s has no field %s: %w", typeName, field, graph.ErrTypeMismatch)
}

func fmtErrFieldType(typeName, field string, want, got cty.Type) error {
	return fmt.Errorf("field %s.%s expects %s, got %s: %w",
		typeName, field, want.FriendlyName(), got.FriendlyName(), graph.ErrTypeMismatch)
}
