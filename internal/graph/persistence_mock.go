package graph

import (
	"context"
	"sync"
)

// PersistCall records a single boundary invocation for test assertions.
type PersistCall struct {
	Op   string // "save-node", "save-edge", "save-root", "delete-node", "delete-edge", "commit"
	ID   uint64
	Root string
}

// MockPersistence implements Persistence in memory with a call log. Staged
// mutations become visible to Load only after Commit, mirroring the boundary
// contract.
type MockPersistence struct {
	mu    sync.Mutex
	calls []PersistCall

	staged   Snapshot
	delNodes map[uint64]bool
	delEdges map[uint64]bool

	nodes map[uint64]NodeRecord
	edges map[uint64]EdgeRecord
	roots map[string]RootRecord

	// FailCommit makes the next Commit return this error once.
	FailCommit error
}

// NewMockPersistence creates an empty mock backend.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		delNodes: map[uint64]bool{},
		delEdges: map[uint64]bool{},
		nodes:    map[uint64]NodeRecord{},
		edges:    map[uint64]EdgeRecord{},
		roots:    map[string]RootRecord{},
	}
}

func (m *MockPersistence) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := &Snapshot{}
	for _, rec := range m.nodes {
		snap.Nodes = append(snap.Nodes, rec)
	}
	for _, rec := range m.edges {
		snap.Edges = append(snap.Edges, rec)
	}
	for _, rec := range m.roots {
		snap.Roots = append(snap.Roots, rec)
	}
	return snap, nil
}

func (m *MockPersistence) SaveNode(ctx context.Context, rec NodeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, PersistCall{Op: "save-node", ID: rec.ID})
	m.staged.Nodes = append(m.staged.Nodes, rec)
	return nil
}

func (m *MockPersistence) SaveEdge(ctx context.Context, rec EdgeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, PersistCall{Op: "save-edge", ID: rec.ID})
	m.staged.Edges = append(m.staged.Edges, rec)
	return nil
}

func (m *MockPersistence) SaveRoot(ctx context.Context, rec RootRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, PersistCall{Op: "save-root", Root: rec.Principal})
	m.staged.Roots = append(m.staged.Roots, rec)
	return nil
}

func (m *MockPersistence) DeleteNode(ctx context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, PersistCall{Op: "delete-node", ID: id})
	m.delNodes[id] = true
	return nil
}

func (m *MockPersistence) DeleteEdge(ctx context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, PersistCall{Op: "delete-edge", ID: id})
	m.delEdges[id] = true
	return nil
}

func (m *MockPersistence) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, PersistCall{Op: "commit"})
	if m.FailCommit != nil {
		err := m.FailCommit
		m.FailCommit = nil
		return err
	}
	for id := range m.delNodes {
		delete(m.nodes, id)
	}
	for id := range m.delEdges {
		delete(m.edges, id)
	}
	for _, rec := range m.staged.Nodes {
		m.nodes[rec.ID] = rec
	}
	for _, rec := range m.staged.Edges {
		m.edges[rec.ID] = rec
	}
	for _, rec := range m.staged.Roots {
		m.roots[rec.Principal] = rec
	}
	m.staged = Snapshot{}
	m.delNodes = map[uint64]bool{}
	m.delEdges = map[uint64]bool{}
	return nil
}

// Calls returns a copy of the recorded invocations in order.
func (m *MockPersistence) Calls() []PersistCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PersistCall(nil), m.calls...)
}

// NodeCount reports how many node records are durable.
func (m *MockPersistence) NodeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}

// EdgeCount reports how many edge records are durable.
func (m *MockPersistence) EdgeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.edges)
}

// HasNode reports whether a node record is durable.
func (m *MockPersistence) HasNode(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[id]
	return ok
}
