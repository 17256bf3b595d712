package events

import "time"

// SpawnStart is emitted when a walker traversal begins, before the origin's
// entry abilities fire. Context carries the walker id.
type SpawnStart struct {
	WalkerType string
	Origin     uint64
}

// SpawnFinish is emitted once the traversal reaches a terminal state.
type SpawnFinish struct {
	WalkerType string
	Status     string
	Reports    int
	Err        error
	Duration   time.Duration
}

// VisitStart is emitted when a walker arrives at a location.
type VisitStart struct {
	WalkerType   string
	LocationType string
	Node         uint64
	Edge         uint64 // zero for node locations
}

// VisitFinish is emitted after a location's entry phase completes.
type VisitFinish struct {
	WalkerType   string
	LocationType string
	Node         uint64
	Edge         uint64
	Abilities    int // entry abilities fired
	Duration     time.Duration
}
