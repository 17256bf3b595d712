package walker

import (
	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	graph "github.com/hanpama/topograph/internal/graph"
)

// Status is the lifecycle state of one walker traversal.
type Status string

const (
	StatusSpawned    Status = "SPAWNED"
	StatusActive     Status = "ACTIVE"
	StatusQueued     Status = "QUEUED"
	StatusDisengaged Status = "DISENGAGED"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// LocationKind discriminates node and edge locations.
type LocationKind string

const (
	LocNode LocationKind = "NODE"
	LocEdge LocationKind = "EDGE"
)

// Location is one entry in a walker's visitation queue. For edge locations,
// Node carries the far endpoint the walker continues to after the edge's
// entry phase.
type Location struct {
	Kind LocationKind
	Node graph.NodeID
	Edge graph.EdgeID
}

// NodeAt makes a node location.
func NodeAt(id graph.NodeID) Location { return Location{Kind: LocNode, Node: id} }

// EdgeAt makes an edge location continuing to the given far endpoint.
func EdgeAt(edge graph.EdgeID, far graph.NodeID) Location {
	return Location{Kind: LocEdge, Edge: edge, Node: far}
}

// Result is handed to the spawner once a traversal reaches a terminal state.
// Reports preserve call order exactly; nothing is deduplicated or reordered.
type Result struct {
	WalkerID    uuid.UUID
	Status      Status
	Reports     []any
	ReturnValue any
}

// walkerState is the mutable traversal state owned by one Spawn call. It is
// only ever touched by that call's goroutine; the model is strictly
// sequential within a walker.
type walkerState struct {
	id       uuid.UUID
	typeName string
	fields   map[string]cty.Value

	queue     []Location
	exitStack []Location
	seen      map[Location]bool

	reports     []any
	returnValue any

	status     Status
	disengaged bool
	visits     int
}
