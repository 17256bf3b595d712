package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hanpama/topograph/internal/eventbus"
	"github.com/hanpama/topograph/internal/events"
)

// Reachable reports whether id can be reached from some root by a directed
// edge path. It always traverses live state, never a cached flag.
func (s *Store) Reachable(id NodeID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[id]; !ok {
		return false, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	_, ok := s.reachableSet()[id]
	return ok, nil
}

// reachableSet computes the nodes reachable from the pinned roots. Caller
// holds at least a read lock.
func (s *Store) reachableSet() map[NodeID]struct{} {
	reached := make(map[NodeID]struct{}, len(s.nodes))
	queue := make([]NodeID, 0, len(s.roots))
	for id := range s.roots {
		reached[id] = struct{}{}
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, eid := range s.nodes[cur].out {
			to := s.edges[eid].to
			if _, ok := reached[to]; !ok {
				reached[to] = struct{}{}
				queue = append(queue, to)
			}
		}
	}
	return reached
}

// CheckpointStats summarizes one checkpoint pass.
type CheckpointStats struct {
	Nodes          int // retained
	Edges          int // retained
	ReclaimedNodes int
	ReclaimedEdges int
}

// Checkpoint runs the lazy reachability sweep: every root-reachable node and
// edge is saved through p, everything else is deleted from both the backend
// and the arena, and the whole batch is committed. roots carries the
// principal bindings to persist alongside the graph.
//
// Callers must not run a checkpoint while a walker traversal is active; the
// sweep may reclaim ephemeral entities the walker still references.
func (s *Store) Checkpoint(ctx context.Context, p Persistence, roots []RootRecord) (CheckpointStats, error) {
	start := time.Now()
	eventbus.Publish(ctx, events.CheckpointStart{})

	stats, err := s.checkpoint(ctx, p, roots)
	eventbus.Publish(ctx, events.CheckpointFinish{
		Nodes:          stats.Nodes,
		Edges:          stats.Edges,
		ReclaimedNodes: stats.ReclaimedNodes,
		ReclaimedEdges: stats.ReclaimedEdges,
		Err:            err,
		Duration:       time.Since(start),
	})
	return stats, err
}

func (s *Store) checkpoint(ctx context.Context, p Persistence, roots []RootRecord) (CheckpointStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats CheckpointStats
	reached := s.reachableSet()

	// An edge lies on a directed root path exactly when its source does.
	deadEdges := map[EdgeID]bool{}
	for id, e := range s.edges {
		if _, ok := reached[e.from]; !ok {
			deadEdges[id] = true
		}
	}
	for _, id := range sortedEdgeIDs(deadEdges) {
		if err := p.DeleteEdge(ctx, uint64(id)); err != nil {
			return stats, fmt.Errorf("checkpoint: delete edge %d: %w", id, err)
		}
		s.removeEdge(id)
		stats.ReclaimedEdges++
	}

	deadNodes := map[NodeID]bool{}
	for id := range s.nodes {
		if _, ok := reached[id]; !ok {
			deadNodes[id] = true
		}
	}
	for _, id := range sortedNodeIDs(deadNodes) {
		if err := p.DeleteNode(ctx, uint64(id)); err != nil {
			return stats, fmt.Errorf("checkpoint: delete node %d: %w", id, err)
		}
		delete(s.nodes, id)
		stats.ReclaimedNodes++
	}

	for _, id := range sortedNodeIDsOf(s.nodes) {
		n := s.nodes[id]
		data, err := encodeFields(s.reg, n.typeName, n.fields)
		if err != nil {
			return stats, fmt.Errorf("checkpoint: %w", err)
		}
		if err := p.SaveNode(ctx, NodeRecord{ID: uint64(id), Type: n.typeName, Fields: data}); err != nil {
			return stats, fmt.Errorf("checkpoint: save node %d: %w", id, err)
		}
		stats.Nodes++
	}
	for _, id := range sortedEdgeIDsOf(s.edges) {
		e := s.edges[id]
		data, err := encodeFields(s.reg, e.typeName, e.fields)
		if err != nil {
			return stats, fmt.Errorf("checkpoint: %w", err)
		}
		rec := EdgeRecord{ID: uint64(id), Type: e.typeName, From: uint64(e.from), To: uint64(e.to), Fields: data}
		if err := p.SaveEdge(ctx, rec); err != nil {
			return stats, fmt.Errorf("checkpoint: save edge %d: %w", id, err)
		}
		stats.Edges++
	}
	for _, rec := range roots {
		if err := p.SaveRoot(ctx, rec); err != nil {
			return stats, fmt.Errorf("checkpoint: save root %q: %w", rec.Principal, err)
		}
	}
	if err := p.Commit(ctx); err != nil {
		return stats, fmt.Errorf("checkpoint: commit: %w", err)
	}
	return stats, nil
}

// Restore rehydrates the arena from a snapshot. Adjacency lists are rebuilt
// in edge id order, which preserves the original insertion order because ids
// are allocated monotonically.
func (s *Store) Restore(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[NodeID]*node, len(snap.Nodes))
	s.edges = make(map[EdgeID]*edge, len(snap.Edges))
	s.roots = map[NodeID]bool{}
	s.nextNode, s.nextEdge = 1, 1

	for _, rec := range snap.Nodes {
		fields, err := decodeFields(s.reg, rec.Type, rec.Fields)
		if err != nil {
			return fmt.Errorf("restore node %d: %w", rec.ID, err)
		}
		id := NodeID(rec.ID)
		s.nodes[id] = &node{id: id, typeName: rec.Type, fields: fields}
		if id >= s.nextNode {
			s.nextNode = id + 1
		}
	}

	edges := append([]EdgeRecord(nil), snap.Edges...)
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	for _, rec := range edges {
		from, to := NodeID(rec.From), NodeID(rec.To)
		if s.nodes[from] == nil || s.nodes[to] == nil {
			return fmt.Errorf("restore edge %d: endpoint %w", rec.ID, ErrNotFound)
		}
		fields, err := decodeFields(s.reg, rec.Type, rec.Fields)
		if err != nil {
			return fmt.Errorf("restore edge %d: %w", rec.ID, err)
		}
		id := EdgeID(rec.ID)
		s.edges[id] = &edge{id: id, typeName: rec.Type, from: from, to: to, fields: fields}
		s.nodes[from].out = append(s.nodes[from].out, id)
		s.nodes[to].in = append(s.nodes[to].in, id)
		if id >= s.nextEdge {
			s.nextEdge = id + 1
		}
	}

	for _, rec := range snap.Roots {
		id := NodeID(rec.Node)
		if s.nodes[id] == nil {
			return fmt.Errorf("restore root %q: node %d: %w", rec.Principal, rec.Node, ErrNotFound)
		}
		s.roots[id] = true
	}
	return nil
}

func sortedNodeIDs(set map[NodeID]bool) []NodeID {
	ids := make([]NodeID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedEdgeIDs(set map[EdgeID]bool) []EdgeID {
	ids := make([]EdgeID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedNodeIDsOf(m map[NodeID]*node) []NodeID {
	ids := make([]NodeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedEdgeIDsOf(m map[EdgeID]*edge) []EdgeID {
	ids := make([]EdgeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
