package walker

import (
	"context"
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"

	dispatch "github.com/hanpama/topograph/internal/dispatch"
	"github.com/hanpama/topograph/internal/eventbus"
	"github.com/hanpama/topograph/internal/events"
	graph "github.com/hanpama/topograph/internal/graph"
	schema "github.com/hanpama/topograph/internal/schema"
	"github.com/hanpama/topograph/internal/walkid"
)

// AbilityFunc is a bound ability implementation. Blocking work must complete
// before returning; the scheduler has no suspension points.
type AbilityFunc func(ctx context.Context, ac *Context) error

// Engine spawns and drives walker traversals over one graph store. Ability
// declarations come from the store's registry; implementations are bound on
// the engine by the host before the first spawn.
type Engine struct {
	store    *graph.Store
	resolver *dispatch.Resolver
	bindings map[string]AbilityFunc
}

// NewEngine creates an engine over the given store.
func NewEngine(store *graph.Store) *Engine {
	return &Engine{
		store:    store,
		resolver: dispatch.NewResolver(store.Registry()),
		bindings: map[string]AbilityFunc{},
	}
}

// Store returns the graph store the engine traverses.
func (e *Engine) Store() *graph.Store { return e.store }

// Bind attaches the implementation of a declared ability. Every ability that
// can fire during a traversal must be bound; an unbound ability reached at
// runtime fails the walker.
func (e *Engine) Bind(typeName, ability string, fn AbilityFunc) error {
	t := e.store.Registry().GetType(typeName)
	if t == nil {
		return fmt.Errorf("bind %s.%s: unknown type: %w", typeName, ability, graph.ErrTypeMismatch)
	}
	for _, a := range t.Abilities {
		if a.Name == ability {
			e.bindings[typeName+"."+ability] = fn
			return nil
		}
	}
	return fmt.Errorf("bind %s.%s: ability not declared: %w", typeName, ability, graph.ErrTypeMismatch)
}

// SpawnOptions tune one traversal.
type SpawnOptions struct {
	// Root is the resolved root handle for the acting principal, exposed to
	// abilities as Context.Root. Zero means the origin itself.
	Root graph.NodeID
	// VisitOnce deduplicates locations within this traversal. Off by
	// default: revisiting a location re-triggers its abilities.
	VisitOnce bool
	// MaxVisits bounds the traversal; exceeding it fails the walker.
	// Zero means unbounded.
	MaxVisits int
}

// Spawn runs a walker of walkerType from origin to a terminal state and
// returns its Result. The traversal is strictly sequential: one location is
// active at a time. On a Failed terminal the partial Result is returned
// together with the error so the caller can distinguish partial reports from
// completed ones.
func (e *Engine) Spawn(ctx context.Context, origin graph.NodeID, walkerType string, fields map[string]cty.Value, opts *SpawnOptions) (*Result, error) {
	t := e.store.Registry().GetType(walkerType)
	if t == nil || t.Kind != schema.KindWalker {
		return nil, fmt.Errorf("spawn %s: not a walker type: %w", walkerType, graph.ErrTypeMismatch)
	}
	if !e.store.HasNode(origin) {
		return nil, fmt.Errorf("spawn %s at node %d: %w", walkerType, origin, graph.ErrNotFound)
	}
	resolved, err := e.resolveWalkerFields(walkerType, fields)
	if err != nil {
		return nil, err
	}

	var options SpawnOptions
	if opts != nil {
		options = *opts
	}
	if options.Root == 0 {
		options.Root = origin
	}

	ctx, id := walkid.NewContext(ctx)
	w := &walkerState{
		id:       id,
		typeName: walkerType,
		fields:   resolved,
		queue:    []Location{NodeAt(origin)},
		seen:     map[Location]bool{},
		status:   StatusSpawned,
	}

	start := time.Now()
	eventbus.Publish(ctx, events.SpawnStart{WalkerType: walkerType, Origin: uint64(origin)})
	runErr := e.run(ctx, w, options)
	res := &Result{
		WalkerID:    w.id,
		Status:      w.status,
		Reports:     append([]any(nil), w.reports...),
		ReturnValue: w.returnValue,
	}
	eventbus.Publish(ctx, events.SpawnFinish{
		WalkerType: walkerType,
		Status:     string(w.status),
		Reports:    len(w.reports),
		Err:        runErr,
		Duration:   time.Since(start),
	})
	if runErr != nil {
		return res, fmt.Errorf("walker %s (%s): %w", walkerType, w.id, runErr)
	}
	return res, nil
}

// run drives the queue to exhaustion or disengage, then unwinds the deferred
// exit stack. Any error is fatal to the traversal.
func (e *Engine) run(ctx context.Context, w *walkerState, opts SpawnOptions) error {
	for len(w.queue) > 0 {
		if err := ctx.Err(); err != nil {
			w.status = StatusFailed
			return fmt.Errorf("traversal canceled: %w", err)
		}
		if opts.MaxVisits > 0 && w.visits >= opts.MaxVisits {
			w.status = StatusFailed
			return fmt.Errorf("visit budget of %d exhausted with %d locations pending", opts.MaxVisits, len(w.queue))
		}

		loc := w.queue[0]
		w.queue = w.queue[1:]
		if opts.VisitOnce {
			if w.seen[loc] {
				continue
			}
			w.seen[loc] = true
		}
		w.visits++
		w.status = StatusActive

		if err := e.visit(ctx, w, loc, opts); err != nil {
			w.status = StatusFailed
			return err
		}

		// The entry phase is done; defer the exit phase and move on.
		w.exitStack = append(w.exitStack, loc)
		if w.disengaged {
			w.queue = nil
			break
		}
		w.status = StatusQueued
	}

	// Deferred exits unwind in strict LIFO order. Disengage short-circuits
	// forward exploration only; cleanup still runs.
	for i := len(w.exitStack) - 1; i >= 0; i-- {
		if _, err := e.fire(ctx, w, w.exitStack[i], opts, schema.DirExit); err != nil {
			w.status = StatusFailed
			return err
		}
	}
	if w.disengaged {
		w.status = StatusDisengaged
	} else {
		w.status = StatusCompleted
	}
	return nil
}

// visit fires the entry phase at loc. Arriving at an edge location also
// schedules the far endpoint as the immediate next location.
func (e *Engine) visit(ctx context.Context, w *walkerState, loc Location, opts SpawnOptions) error {
	locType, err := e.locationType(loc)
	if err != nil {
		return err
	}
	start := time.Now()
	eventbus.Publish(ctx, events.VisitStart{
		WalkerType:   w.typeName,
		LocationType: locType,
		Node:         uint64(loc.Node),
		Edge:         uint64(loc.Edge),
	})
	fired, err := e.fire(ctx, w, loc, opts, schema.DirEntry)
	eventbus.Publish(ctx, events.VisitFinish{
		WalkerType:   w.typeName,
		LocationType: locType,
		Node:         uint64(loc.Node),
		Edge:         uint64(loc.Edge),
		Abilities:    fired,
		Duration:     time.Since(start),
	})
	if err != nil {
		return err
	}
	if loc.Kind == LocEdge && !w.disengaged {
		w.queue = append([]Location{NodeAt(loc.Node)}, w.queue...)
	}
	return nil
}

// fire runs the matching abilities for one phase at one location, in
// dispatch order. Resolving zero abilities is normal control flow.
func (e *Engine) fire(ctx context.Context, w *walkerState, loc Location, opts SpawnOptions, dir schema.Direction) (int, error) {
	locType, err := e.locationType(loc)
	if err != nil {
		return 0, err
	}
	handles := e.resolver.Resolve(w.typeName, locType, dir)
	fired := 0
	for _, h := range handles {
		fn := e.bindings[h.Owner+"."+h.Ability.Name]
		if fn == nil {
			return fired, fmt.Errorf("ability %s.%s matched but has no bound implementation", h.Owner, h.Ability.Name)
		}
		ac := &Context{engine: e, walker: w, here: loc, root: opts.Root}
		if err := fn(ctx, ac); err != nil {
			return fired, fmt.Errorf("ability %s.%s: %w", h.Owner, h.Ability.Name, err)
		}
		fired++
		if w.disengaged && dir == schema.DirEntry {
			break
		}
	}
	return fired, nil
}

func (e *Engine) locationType(loc Location) (string, error) {
	if loc.Kind == LocEdge {
		return e.store.EdgeType(loc.Edge)
	}
	return e.store.NodeType(loc.Node)
}

// resolveWalkerFields validates spawn-provided fields against the walker
// type's effective declarations and fills the rest with defaults or typed
// nulls.
func (e *Engine) resolveWalkerFields(typeName string, fields map[string]cty.Value) (map[string]cty.Value, error) {
	reg := e.store.Registry()
	defs := reg.EffectiveFields(typeName)
	resolved := make(map[string]cty.Value, len(defs))
	for _, def := range defs {
		if def.Default != cty.NilVal {
			resolved[def.Name] = def.Default
		} else {
			resolved[def.Name] = cty.NullVal(def.Type)
		}
	}
	for name, v := range fields {
		def := reg.FieldDef(typeName, name)
		if def == nil {
			return nil, fmt.Errorf("walker %s has no field %s: %w", typeName, name, graph.ErrTypeMismatch)
		}
		if !v.Type().Equals(def.Type) {
			return nil, fmt.Errorf("field %s.%s expects %s, got %s: %w",
				typeName, name, def.Type.FriendlyName(), v.Type().FriendlyName(), graph.ErrTypeMismatch)
		}
		resolved[name] = v
	}
	return resolved, nil
}
