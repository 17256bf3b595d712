// Package filter evaluates type and attribute predicates over node and edge
// collections. Filtering is stable: matching items keep their relative order
// from the input sequence.
package filter

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	graph "github.com/hanpama/topograph/internal/graph"
)

// Op is a comparison operator in an attribute predicate.
type Op string

const (
	OpEq  Op = "=="
	OpNeq Op = "!="
	OpLt  Op = "<"
	OpGt  Op = ">"
	OpLte Op = "<="
	OpGte Op = ">="
)

// Predicate compares a named field against a constant. Multiple predicates
// conjoin: every one must hold.
type Predicate struct {
	Field string
	Op    Op
	Value cty.Value
}

// StepFilter narrows one traversal step: the edge filter restricts candidate
// edges first, then the node filter restricts the resulting destination
// nodes. That order is fixed.
type StepFilter struct {
	EdgeType       string // empty matches every edge type
	EdgePredicates []Predicate
	NodeTypes      []string // union; empty matches every node type
	NodePredicates []Predicate
}

// Nodes filters a node id sequence by type union and attribute predicates.
func Nodes(s *graph.Store, ids []graph.NodeID, types []string, preds []Predicate) ([]graph.NodeID, error) {
	var out []graph.NodeID
	for _, id := range ids {
		ok, err := matchNode(s, id, types, preds)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// Edges filters an edge id sequence by type and attribute predicates.
func Edges(s *graph.Store, ids []graph.EdgeID, edgeType string, preds []Predicate) ([]graph.EdgeID, error) {
	var out []graph.EdgeID
	for _, id := range ids {
		ok, err := matchEdge(s, id, edgeType, preds)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// Steps performs a filtered neighbor walk from origin: the edge-type
// restriction applies during the walk itself, edge predicates narrow the
// candidate edges, and the node filter narrows the resulting destinations.
func Steps(s *graph.Store, origin graph.NodeID, dir graph.Direction, f StepFilter) ([]graph.Step, error) {
	steps, err := s.Neighbors(origin, dir, f.EdgeType)
	if err != nil {
		return nil, err
	}
	var out []graph.Step
	for _, step := range steps {
		ok, err := matchEdge(s, step.Edge, "", f.EdgePredicates)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ok, err = matchNode(s, step.Node, f.NodeTypes, f.NodePredicates)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, step)
		}
	}
	return out, nil
}

func matchNode(s *graph.Store, id graph.NodeID, types []string, preds []Predicate) (bool, error) {
	if len(types) > 0 {
		typeName, err := s.NodeType(id)
		if err != nil {
			return false, err
		}
		if !conformsAny(s, typeName, types) {
			return false, nil
		}
	}
	for _, p := range preds {
		v, err := s.NodeField(id, p.Field)
		if err != nil {
			return false, err
		}
		ok, err := evaluate(v, p)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchEdge(s *graph.Store, id graph.EdgeID, edgeType string, preds []Predicate) (bool, error) {
	if edgeType != "" {
		typeName, err := s.EdgeType(id)
		if err != nil {
			return false, err
		}
		if !s.Registry().Conforms(typeName, edgeType) {
			return false, nil
		}
	}
	for _, p := range preds {
		v, err := s.EdgeField(id, p.Field)
		if err != nil {
			return false, err
		}
		ok, err := evaluate(v, p)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func conformsAny(s *graph.Store, typeName string, wants []string) bool {
	for _, w := range wants {
		if s.Registry().Conforms(typeName, w) {
			return true
		}
	}
	return false
}

// evaluate applies one predicate to a field value. Null field values match
// nothing. Ordering operators require numbers on both sides.
func evaluate(v cty.Value, p Predicate) (bool, error) {
	if v.IsNull() {
		return false, nil
	}
	switch p.Op {
	case OpEq:
		return v.Equals(p.Value).True(), nil
	case OpNeq:
		return v.Equals(p.Value).False(), nil
	case OpLt, OpGt, OpLte, OpGte:
		if v.Type() != cty.Number || p.Value.Type() != cty.Number {
			return false, fmt.Errorf("operator %s requires numbers, got %s and %s: %w",
				p.Op, v.Type().FriendlyName(), p.Value.Type().FriendlyName(), graph.ErrTypeMismatch)
		}
		switch p.Op {
		case OpLt:
			return v.LessThan(p.Value).True(), nil
		case OpGt:
			return v.GreaterThan(p.Value).True(), nil
		case OpLte:
			return v.LessThanOrEqualTo(p.Value).True(), nil
		default:
			return v.GreaterThanOrEqualTo(p.Value).True(), nil
		}
	default:
		return false, fmt.Errorf("unknown operator %q", p.Op)
	}
}
