package graph

import (
	"context"
)

// Persistence is the storage boundary the store checkpoints through. The
// actual tiering (volatile, cache, durable) is opaque behind it.
//
// Contract:
//   - Save* and Delete* stage mutations; nothing is required to be durable
//     until Commit returns nil.
//   - Commit applies every staged mutation atomically or not at all.
//   - Load returns the full durable state; field payloads are opaque bytes
//     produced by the store's own encoding.
//   - Implementations must be safe for use by one checkpoint at a time; the
//     store serializes checkpoints itself.
type Persistence interface {
	Load(ctx context.Context) (*Snapshot, error)
	SaveNode(ctx context.Context, rec NodeRecord) error
	SaveEdge(ctx context.Context, rec EdgeRecord) error
	SaveRoot(ctx context.Context, rec RootRecord) error
	DeleteNode(ctx context.Context, id uint64) error
	DeleteEdge(ctx context.Context, id uint64) error
	Commit(ctx context.Context) error
}

// NodeRecord is the portable form of a node.
type NodeRecord struct {
	ID     uint64 `json:"id"`
	Type   string `json:"type"`
	Fields []byte `json:"fields,omitempty"`
}

// EdgeRecord is the portable form of an edge.
type EdgeRecord struct {
	ID     uint64 `json:"id"`
	Type   string `json:"type"`
	From   uint64 `json:"from"`
	To     uint64 `json:"to"`
	Fields []byte `json:"fields,omitempty"`
}

// RootRecord binds a principal to its root node.
type RootRecord struct {
	Principal string `json:"principal"`
	Node      uint64 `json:"node"`
}

// Snapshot is the durable state handed back by Load.
type Snapshot struct {
	Nodes []NodeRecord
	Edges []EdgeRecord
	Roots []RootRecord
}
