package walker

import (
	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	filter "github.com/hanpama/topograph/internal/filter"
	graph "github.com/hanpama/topograph/internal/graph"
)

// Context is passed into every ability invocation. It carries the current
// location, the acting walker and the resolved root handle explicitly; there
// is no ambient global state.
type Context struct {
	engine *Engine
	walker *walkerState
	here   Location
	root   graph.NodeID
}

// Store exposes the graph store for mutation and query from ability bodies.
func (c *Context) Store() *graph.Store { return c.engine.store }

// Here is the location the walker currently occupies.
func (c *Context) Here() Location { return c.here }

// Root is the resolved root handle for the acting principal.
func (c *Context) Root() graph.NodeID { return c.root }

// WalkerID identifies this traversal instance.
func (c *Context) WalkerID() uuid.UUID { return c.walker.id }

// Field reads a named field of the walker's own state.
func (c *Context) Field(name string) (cty.Value, error) {
	if v, ok := c.walker.fields[name]; ok {
		return v, nil
	}
	return cty.NilVal, fmtErrNoField(c.walker.typeName, name)
}

// SetField writes a named field of the walker's own state, validating the
// declared type. Walker state persists across the whole traversal.
func (c *Context) SetField(name string, v cty.Value) error {
	reg := c.engine.store.Registry()
	def := reg.FieldDef(c.walker.typeName, name)
	if def == nil {
		return fmtErrNoField(c.walker.typeName, name)
	}
	if !v.IsNull() && !v.Type().Equals(def.Type) {
		return fmtErrFieldType(c.walker.typeName, name, def.Type, v.Type())
	}
	c.walker.fields[name] = v
	return nil
}

// Visit appends targets to the pending queue, preserving their order, and
// returns how many were queued. A zero return is the hook for an else
// clause: its body runs synchronously at the call site when the computed
// target set is empty.
func (c *Context) Visit(targets ...Location) int {
	return c.VisitAt(len(c.walker.queue), targets...)
}

// VisitAt inserts targets into the pending queue at the given index. Index 0
// yields depth-first exploration for the branch, appending yields
// breadth-first. An out-of-range index clamps to append.
func (c *Context) VisitAt(index int, targets ...Location) int {
	if len(targets) == 0 {
		return 0
	}
	q := c.walker.queue
	if index < 0 || index > len(q) {
		index = len(q)
	}
	next := make([]Location, 0, len(q)+len(targets))
	next = append(next, q[:index]...)
	next = append(next, targets...)
	next = append(next, q[index:]...)
	c.walker.queue = next
	return len(targets)
}

// Steps resolves the composed traversal filter from the current node and
// returns the destination nodes as locations, in edge insertion order.
func (c *Context) Steps(dir graph.Direction, f filter.StepFilter) ([]Location, error) {
	steps, err := filter.Steps(c.engine.store, c.here.Node, dir, f)
	if err != nil {
		return nil, err
	}
	locs := make([]Location, len(steps))
	for i, s := range steps {
		locs[i] = NodeAt(s.Node)
	}
	return locs, nil
}

// EdgeSteps is Steps but yields the edges themselves as locations; visiting
// an edge fires its abilities and then continues to the far endpoint.
func (c *Context) EdgeSteps(dir graph.Direction, f filter.StepFilter) ([]Location, error) {
	steps, err := filter.Steps(c.engine.store, c.here.Node, dir, f)
	if err != nil {
		return nil, err
	}
	locs := make([]Location, len(steps))
	for i, s := range steps {
		locs[i] = EdgeAt(s.Edge, s.Node)
	}
	return locs, nil
}

// Report appends v to the walker's report buffer in call order.
func (c *Context) Report(v any) {
	c.walker.reports = append(c.walker.reports, v)
}

// Return sets the traversal's terminal return value; the last write wins.
func (c *Context) Return(v any) {
	c.walker.returnValue = v
}

// Disengage stops forward exploration immediately: the pending queue is
// discarded, no further entry ability fires, and deferred exits for every
// open location still unwind.
func (c *Context) Disengage() {
	c.walker.disengaged = true
}
