package events

import "time"

// CheckpointStart is emitted before a reachability sweep begins.
type CheckpointStart struct{}

// CheckpointFinish is emitted after the sweep and commit complete.
type CheckpointFinish struct {
	Nodes          int
	Edges          int
	ReclaimedNodes int
	ReclaimedEdges int
	Err            error
	Duration       time.Duration
}
