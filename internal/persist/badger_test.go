package persist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	graph "github.com/hanpama/topograph/internal/graph"
)

func TestStagedMutationsAreInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, snap.Nodes)

	require.NoError(t, s.SaveNode(ctx, graph.NodeRecord{ID: 1, Type: "Task", Fields: []byte(`{"title":"x"}`)}))
	require.NoError(t, s.SaveEdge(ctx, graph.EdgeRecord{ID: 1, Type: "Owns", From: 2, To: 1}))
	require.NoError(t, s.SaveRoot(ctx, graph.RootRecord{Principal: "alice", Node: 2}))

	snap, err = s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, snap.Nodes)
	require.Empty(t, snap.Edges)
	require.Empty(t, snap.Roots)

	require.NoError(t, s.Commit(ctx))
	snap, err = s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 1)
	require.Equal(t, graph.NodeRecord{ID: 1, Type: "Task", Fields: []byte(`{"title":"x"}`)}, snap.Nodes[0])
	require.Len(t, snap.Edges, 1)
	require.Equal(t, graph.EdgeRecord{ID: 1, Type: "Owns", From: 2, To: 1}, snap.Edges[0])
	require.Len(t, snap.Roots, 1)
	require.Equal(t, graph.RootRecord{Principal: "alice", Node: 2}, snap.Roots[0])
}

func TestDeleteAndOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveNode(ctx, graph.NodeRecord{ID: 1, Type: "Task"}))
	require.NoError(t, s.SaveNode(ctx, graph.NodeRecord{ID: 2, Type: "Task"}))
	require.NoError(t, s.Commit(ctx))

	require.NoError(t, s.DeleteNode(ctx, 2))
	require.NoError(t, s.SaveNode(ctx, graph.NodeRecord{ID: 1, Type: "Task", Fields: []byte(`{"title":"y"}`)}))
	require.NoError(t, s.Commit(ctx))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 1)
	require.Equal(t, uint64(1), snap.Nodes[0].ID)
	require.Equal(t, []byte(`{"title":"y"}`), snap.Nodes[0].Fields)

	// Deleting a key that was never written is not an error at this layer.
	require.NoError(t, s.DeleteEdge(ctx, 77))
	require.NoError(t, s.Commit(ctx))
}

func TestLoad_SystemPrincipalRoot(t *testing.T) {
	ctx := context.Background()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	// The system principal is the empty string; its root key is the bare
	// "r/" prefix and must still round-trip.
	require.NoError(t, s.SaveRoot(ctx, graph.RootRecord{Principal: "", Node: 1}))
	require.NoError(t, s.Commit(ctx))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Roots, 1)
	require.Equal(t, graph.RootRecord{Principal: "", Node: 1}, snap.Roots[0])
}

func TestDurableAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, s.SaveNode(ctx, graph.NodeRecord{ID: 7, Type: "Task"}))
	require.NoError(t, s.SaveRoot(ctx, graph.RootRecord{Principal: "", Node: 7}))
	require.NoError(t, s.Commit(ctx))
	require.NoError(t, s.Close())

	s, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()
	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 1)
	require.Equal(t, uint64(7), snap.Nodes[0].ID)
	require.Len(t, snap.Roots, 1)
	require.Equal(t, "", snap.Roots[0].Principal)
}
