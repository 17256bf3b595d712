// Package isolation maps principals to their root nodes. Each principal's
// traversals originate at its own root; cross-principal access exists only
// through edges explicitly created across that boundary.
package isolation

import (
	"fmt"
	"sort"
	"sync"

	graph "github.com/hanpama/topograph/internal/graph"
	schema "github.com/hanpama/topograph/internal/schema"
)

// SystemPrincipal is the anonymous/system execution context.
const SystemPrincipal = ""

// Manager provisions one root node per principal, lazily on first use, and
// pins it in the store so the reachability sweep never reclaims it.
type Manager struct {
	mu    sync.Mutex
	store *graph.Store
	roots map[string]graph.NodeID
}

// NewManager creates a manager over the given store.
func NewManager(store *graph.Store) *Manager {
	return &Manager{store: store, roots: map[string]graph.NodeID{}}
}

// ResolveRoot returns the principal's root node, creating and pinning it on
// first use. The mapping is stable for the manager's lifetime.
func (m *Manager) ResolveRoot(principal string) (graph.NodeID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.roots[principal]; ok {
		return id, nil
	}
	id, err := m.store.CreateNode(schema.RootTypeName, nil)
	if err != nil {
		return 0, fmt.Errorf("provisioning root for %q: %w", principal, err)
	}
	if err := m.store.AddRoot(id); err != nil {
		return 0, fmt.Errorf("pinning root for %q: %w", principal, err)
	}
	m.roots[principal] = id
	return id, nil
}

// Records returns the principal bindings for checkpointing, in stable order.
func (m *Manager) Records() []graph.RootRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	principals := make([]string, 0, len(m.roots))
	for p := range m.roots {
		principals = append(principals, p)
	}
	sort.Strings(principals)
	recs := make([]graph.RootRecord, len(principals))
	for i, p := range principals {
		recs[i] = graph.RootRecord{Principal: p, Node: uint64(m.roots[p])}
	}
	return recs
}

// Restore rebinds principals from a snapshot after the store itself has been
// restored. Unknown node ids are rejected.
func (m *Manager) Restore(snap *graph.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range snap.Roots {
		id := graph.NodeID(rec.Node)
		if !m.store.HasNode(id) {
			return fmt.Errorf("restoring root for %q: node %d: %w", rec.Principal, rec.Node, graph.ErrNotFound)
		}
		m.roots[rec.Principal] = id
	}
	return nil
}
