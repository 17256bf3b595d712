package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestReachable_LiveState(t *testing.T) {
	s := NewStore(storeRegistry(t))
	root, _ := s.CreateNode("Root", nil)
	require.NoError(t, s.AddRoot(root))
	a, _ := s.CreateNode("Task", nil)
	b, _ := s.CreateNode("Task", nil)
	orphan, _ := s.CreateNode("Task", nil)
	_, err := s.Connect(root, a, "Owns", nil, true)
	require.NoError(t, err)
	e, err := s.Connect(a, b, "Edge", nil, true)
	require.NoError(t, err)

	for id, want := range map[NodeID]bool{root: true, a: true, b: true, orphan: false} {
		got, err := s.Reachable(id)
		require.NoError(t, err)
		require.Equal(t, want, got, "node %d", id)
	}
	_, err = s.Reachable(999)
	require.ErrorIs(t, err, ErrNotFound)

	// Reachability answers against live state: cutting the path flips the
	// answer on the next query, with no sweep in between.
	require.NoError(t, s.DeleteEdge(e))
	got, err := s.Reachable(b)
	require.NoError(t, err)
	require.False(t, got)
}

func TestCheckpoint_SweepsUnreachable(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storeRegistry(t))
	root, _ := s.CreateNode("Root", nil)
	require.NoError(t, s.AddRoot(root))
	a, _ := s.CreateNode("Task", map[string]cty.Value{"title": cty.StringVal("kept")})
	orphan, _ := s.CreateNode("Task", nil)
	_, err := s.Connect(root, a, "Owns", nil, true)
	require.NoError(t, err)
	// An edge whose source is unreachable dies with it, even though its
	// target survives.
	inbound, err := s.Connect(orphan, a, "Edge", nil, true)
	require.NoError(t, err)

	p := NewMockPersistence()
	roots := []RootRecord{{Principal: "", Node: uint64(root)}}
	stats, err := s.Checkpoint(ctx, p, roots)
	require.NoError(t, err)
	require.Equal(t, CheckpointStats{Nodes: 2, Edges: 1, ReclaimedNodes: 1, ReclaimedEdges: 1}, stats)

	// Arena and backend agree after the sweep.
	require.False(t, s.HasNode(orphan))
	_, err = s.EdgeType(inbound)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 2, p.NodeCount())
	require.Equal(t, 1, p.EdgeCount())
	require.True(t, p.HasNode(uint64(root)))
	require.True(t, p.HasNode(uint64(a)))

	// Deletes precede saves, and the batch ends in a single commit.
	calls := p.Calls()
	wantOps := []string{"delete-edge", "delete-node", "save-node", "save-node", "save-edge", "save-root", "commit"}
	gotOps := make([]string, len(calls))
	for i, c := range calls {
		gotOps[i] = c.Op
	}
	if diff := cmp.Diff(wantOps, gotOps); diff != "" {
		t.Fatalf("boundary call order mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckpoint_CommitFailure(t *testing.T) {
	s := NewStore(storeRegistry(t))
	root, _ := s.CreateNode("Root", nil)
	require.NoError(t, s.AddRoot(root))

	p := NewMockPersistence()
	p.FailCommit = errors.New("disk full")
	_, err := s.Checkpoint(context.Background(), p, nil)
	require.ErrorContains(t, err, "disk full")
	require.Equal(t, 0, p.NodeCount())
}

func TestRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := storeRegistry(t)
	s := NewStore(reg)
	root, _ := s.CreateNode("Root", nil)
	require.NoError(t, s.AddRoot(root))
	a, _ := s.CreateNode("City", map[string]cty.Value{"name": cty.StringVal("a")})
	b, _ := s.CreateNode("City", map[string]cty.Value{"name": cty.StringVal("b")})
	c, _ := s.CreateNode("City", map[string]cty.Value{"name": cty.StringVal("c")})
	_, err := s.Connect(root, a, "Edge", nil, true)
	require.NoError(t, err)
	e1, _ := s.Connect(a, b, "Road", map[string]cty.Value{"weight": cty.NumberIntVal(1)}, true)
	e2, _ := s.Connect(a, c, "Road", map[string]cty.Value{"weight": cty.NumberIntVal(2)}, true)

	p := NewMockPersistence()
	_, err = s.Checkpoint(ctx, p, []RootRecord{{Principal: "", Node: uint64(root)}})
	require.NoError(t, err)
	snap, err := p.Load(ctx)
	require.NoError(t, err)

	restored := NewStore(reg)
	require.NoError(t, restored.Restore(snap))

	// Adjacency order survives the round trip.
	got, err := restored.Neighbors(a, DirOut, "Road")
	require.NoError(t, err)
	want := []Step{{Edge: e1, Node: b}, {Edge: e2, Node: c}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Neighbors mismatch (-want +got):\n%s", diff)
	}

	name, err := restored.NodeField(c, "name")
	require.NoError(t, err)
	require.True(t, name.Equals(cty.StringVal("c")).True())
	w, err := restored.EdgeField(e2, "weight")
	require.NoError(t, err)
	require.True(t, w.Equals(cty.NumberIntVal(2)).True())
	require.Equal(t, []NodeID{root}, restored.Roots())

	// Id allocation resumes past the snapshot.
	next, err := restored.CreateNode("City", nil)
	require.NoError(t, err)
	require.Greater(t, next, c)
}

func TestRestore_RejectsDanglingReferences(t *testing.T) {
	reg := storeRegistry(t)

	s := NewStore(reg)
	err := s.Restore(&Snapshot{
		Nodes: []NodeRecord{{ID: 1, Type: "City"}},
		Edges: []EdgeRecord{{ID: 1, Type: "Road", From: 1, To: 2}},
	})
	require.ErrorIs(t, err, ErrNotFound)

	s = NewStore(reg)
	err = s.Restore(&Snapshot{
		Roots: []RootRecord{{Principal: "alice", Node: 7}},
	})
	require.ErrorIs(t, err, ErrNotFound)
}
