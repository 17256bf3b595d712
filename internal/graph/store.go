package graph

import (
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	schema "github.com/hanpama/topograph/internal/schema"
)

// NodeID is the stable identity of a node within one store.
type NodeID uint64

// EdgeID is the stable identity of an edge within one store.
type EdgeID uint64

// Direction selects which incident edges a neighbor walk follows.
type Direction string

const (
	DirOut  Direction = "OUT"
	DirIn   Direction = "IN"
	DirBoth Direction = "BOTH"
)

// Step is one traversal step: the edge taken and the node it leads to.
type Step struct {
	Edge EdgeID
	Node NodeID
}

// node and edge records are unexported; all access goes through the store by
// id so cycles are representable without owning references.
type node struct {
	id       NodeID
	typeName string
	fields   map[string]cty.Value
	out      []EdgeID // insertion order
	in       []EdgeID // insertion order
}

type edge struct {
	id       EdgeID
	typeName string
	from, to NodeID
	fields   map[string]cty.Value
}

// Store is an arena of nodes and edges validated against a type registry.
// All operations are concurrency-safe; per-node field and edge-list updates
// are atomic with respect to concurrent walker schedulers.
type Store struct {
	mu    sync.RWMutex
	reg   *schema.Registry
	nodes map[NodeID]*node
	edges map[EdgeID]*edge
	roots map[NodeID]bool

	nextNode NodeID
	nextEdge EdgeID
}

// NewStore creates an empty store bound to the given registry.
func NewStore(reg *schema.Registry) *Store {
	return &Store{
		reg:      reg,
		nodes:    map[NodeID]*node{},
		edges:    map[EdgeID]*edge{},
		roots:    map[NodeID]bool{},
		nextNode: 1,
		nextEdge: 1,
	}
}

// Registry returns the type registry the store validates against.
func (s *Store) Registry() *schema.Registry { return s.reg }

// CreateNode allocates a node of the given declared type. Provided fields are
// validated against the effective (inherited) declarations; missing fields
// take their declared default or a typed null.
func (s *Store) CreateNode(typeName string, fields map[string]cty.Value) (NodeID, error) {
	t := s.reg.GetType(typeName)
	if t == nil || t.Kind != schema.KindNode {
		return 0, fmt.Errorf("creating node of type %s: %w", typeName, ErrTypeMismatch)
	}
	resolved, err := s.resolveFields(typeName, fields)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextNode
	s.nextNode++
	s.nodes[id] = &node{id: id, typeName: typeName, fields: resolved}
	return id, nil
}

// Connect creates an edge of edgeType from one node to another. With
// directed = false a reverse edge is created in the same operation; the pair
// shares nothing beyond type and field values, and if either insertion would
// fail neither is committed. The returned id is the forward edge's.
func (s *Store) Connect(from, to NodeID, edgeType string, fields map[string]cty.Value, directed bool) (EdgeID, error) {
	t := s.reg.GetType(edgeType)
	if t == nil || t.Kind != schema.KindEdge {
		return 0, fmt.Errorf("connecting with edge type %s: %w", edgeType, ErrTypeMismatch)
	}
	resolved, err := s.resolveFields(edgeType, fields)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEndpoints(t, from, to); err != nil {
		return 0, err
	}
	if !directed {
		// Reverse endpoints must also satisfy the constraint before either
		// edge is committed.
		if err := s.checkEndpoints(t, to, from); err != nil {
			return 0, err
		}
	}

	forward := s.insertEdge(edgeType, from, to, resolved)
	if !directed {
		reverse := make(map[string]cty.Value, len(resolved))
		for k, v := range resolved {
			reverse[k] = v
		}
		s.insertEdge(edgeType, to, from, reverse)
	}
	return forward, nil
}

// insertEdge commits one edge record. Caller holds the lock and has
// validated endpoints.
func (s *Store) insertEdge(edgeType string, from, to NodeID, fields map[string]cty.Value) EdgeID {
	id := s.nextEdge
	s.nextEdge++
	s.edges[id] = &edge{id: id, typeName: edgeType, from: from, to: to, fields: fields}
	s.nodes[from].out = append(s.nodes[from].out, id)
	s.nodes[to].in = append(s.nodes[to].in, id)
	return id
}

func (s *Store) checkEndpoints(t *schema.Type, from, to NodeID) error {
	fromNode, ok := s.nodes[from]
	if !ok {
		return fmt.Errorf("connect: source node %d: %w", from, ErrNotFound)
	}
	toNode, ok := s.nodes[to]
	if !ok {
		return fmt.Errorf("connect: target node %d: %w", to, ErrNotFound)
	}
	if len(t.From) > 0 && !s.conformsAny(fromNode.typeName, t.From) {
		return fmt.Errorf("connect: %s cannot start at %s: %w", t.Name, fromNode.typeName, ErrTypeMismatch)
	}
	if len(t.To) > 0 && !s.conformsAny(toNode.typeName, t.To) {
		return fmt.Errorf("connect: %s cannot end at %s: %w", t.Name, toNode.typeName, ErrTypeMismatch)
	}
	return nil
}

func (s *Store) conformsAny(typeName string, wants []string) bool {
	for _, w := range wants {
		if s.reg.Conforms(typeName, w) {
			return true
		}
	}
	return false
}

// DeleteNode removes the node and every edge incident to it. The cascade is
// not recursive: former neighbors survive until a reclamation sweep finds
// them unreachable.
func (s *Store) DeleteNode(id NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("delete node %d: %w", id, ErrNotFound)
	}
	for _, eid := range append(append([]EdgeID{}, n.out...), n.in...) {
		s.removeEdge(eid)
	}
	delete(s.nodes, id)
	delete(s.roots, id)
	return nil
}

// DeleteEdge removes a single edge.
func (s *Store) DeleteEdge(id EdgeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.edges[id]; !ok {
		return fmt.Errorf("delete edge %d: %w", id, ErrNotFound)
	}
	s.removeEdge(id)
	return nil
}

// removeEdge unlinks the edge from both adjacency lists. Caller holds the
// lock.
func (s *Store) removeEdge(id EdgeID) {
	e, ok := s.edges[id]
	if !ok {
		return
	}
	if n, ok := s.nodes[e.from]; ok {
		n.out = dropEdge(n.out, id)
	}
	if n, ok := s.nodes[e.to]; ok {
		n.in = dropEdge(n.in, id)
	}
	delete(s.edges, id)
}

func dropEdge(list []EdgeID, id EdgeID) []EdgeID {
	for i, e := range list {
		if e == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Neighbors returns the steps reachable from id over incident edges, in edge
// insertion order. With DirBoth, outgoing steps precede incoming ones.
// edgeType narrows the walk to edges conforming to that type; empty matches
// every edge.
func (s *Store) Neighbors(id NodeID, dir Direction, edgeType string) ([]Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("neighbors of %d: %w", id, ErrNotFound)
	}
	var steps []Step
	if dir == DirOut || dir == DirBoth {
		for _, eid := range n.out {
			e := s.edges[eid]
			if edgeType != "" && !s.reg.Conforms(e.typeName, edgeType) {
				continue
			}
			steps = append(steps, Step{Edge: eid, Node: e.to})
		}
	}
	if dir == DirIn || dir == DirBoth {
		for _, eid := range n.in {
			e := s.edges[eid]
			if edgeType != "" && !s.reg.Conforms(e.typeName, edgeType) {
				continue
			}
			steps = append(steps, Step{Edge: eid, Node: e.from})
		}
	}
	return steps, nil
}

// HasNode reports whether id is live in the arena.
func (s *Store) HasNode(id NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// NodeType returns the declared type of a node.
func (s *Store) NodeType(id NodeID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return "", fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	return n.typeName, nil
}

// EdgeType returns the declared type of an edge.
func (s *Store) EdgeType(id EdgeID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	if !ok {
		return "", fmt.Errorf("edge %d: %w", id, ErrNotFound)
	}
	return e.typeName, nil
}

// EdgeEndpoints returns the source and target node ids of an edge.
func (s *Store) EdgeEndpoints(id EdgeID) (NodeID, NodeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	if !ok {
		return 0, 0, fmt.Errorf("edge %d: %w", id, ErrNotFound)
	}
	return e.from, e.to, nil
}

// NodeField reads a field value from a node.
func (s *Store) NodeField(id NodeID, name string) (cty.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return cty.NilVal, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	v, ok := n.fields[name]
	if !ok {
		return cty.NilVal, fmt.Errorf("node %d has no field %s: %w", id, name, ErrTypeMismatch)
	}
	return v, nil
}

// SetNodeField writes a field value on a node, validating the declared type.
func (s *Store) SetNodeField(id NodeID, name string, v cty.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	return setField(s.reg, n.typeName, n.fields, name, v)
}

// EdgeField reads a field value from an edge.
func (s *Store) EdgeField(id EdgeID, name string) (cty.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	if !ok {
		return cty.NilVal, fmt.Errorf("edge %d: %w", id, ErrNotFound)
	}
	v, ok := e.fields[name]
	if !ok {
		return cty.NilVal, fmt.Errorf("edge %d has no field %s: %w", id, name, ErrTypeMismatch)
	}
	return v, nil
}

// SetEdgeField writes a field value on an edge, validating the declared type.
func (s *Store) SetEdgeField(id EdgeID, name string, v cty.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edges[id]
	if !ok {
		return fmt.Errorf("edge %d: %w", id, ErrNotFound)
	}
	return setField(s.reg, e.typeName, e.fields, name, v)
}

// AddRoot pins an existing node as a traversal root. Roots are the origins
// of the persistence-by-reachability rule and are never reclaimed.
func (s *Store) AddRoot(id NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return fmt.Errorf("root node %d: %w", id, ErrNotFound)
	}
	s.roots[id] = true
	return nil
}

// Roots returns the pinned root node ids in ascending id order.
func (s *Store) Roots() []NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedNodeIDs(s.roots)
}

// resolveFields validates provided values against the effective field
// declarations of typeName and fills the remainder with defaults or typed
// nulls.
func (s *Store) resolveFields(typeName string, fields map[string]cty.Value) (map[string]cty.Value, error) {
	defs := s.reg.EffectiveFields(typeName)
	resolved := make(map[string]cty.Value, len(defs))
	for _, def := range defs {
		if def.Default != cty.NilVal {
			resolved[def.Name] = def.Default
		} else {
			resolved[def.Name] = cty.NullVal(def.Type)
		}
	}
	for name, v := range fields {
		def := s.reg.FieldDef(typeName, name)
		if def == nil {
			return nil, fmt.Errorf("type %s has no field %s: %w", typeName, name, ErrTypeMismatch)
		}
		if !v.Type().Equals(def.Type) {
			return nil, fmt.Errorf("field %s.%s expects %s, got %s: %w",
				typeName, name, def.Type.FriendlyName(), v.Type().FriendlyName(), ErrTypeMismatch)
		}
		resolved[name] = v
	}
	return resolved, nil
}

func setField(reg *schema.Registry, typeName string, fields map[string]cty.Value, name string, v cty.Value) error {
	def := reg.FieldDef(typeName, name)
	if def == nil {
		return fmt.Errorf("type %s has no field %s: %w", typeName, name, ErrTypeMismatch)
	}
	if !v.IsNull() && !v.Type().Equals(def.Type) {
		return fmt.Errorf("field %s.%s expects %s, got %s: %w",
			typeName, name, def.Type.FriendlyName(), v.Type().FriendlyName(), ErrTypeMismatch)
	}
	fields[name] = v
	return nil
}
