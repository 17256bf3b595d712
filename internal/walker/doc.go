// Package walker implements the traversal scheduler: walkers are spawned at
// an origin node and driven location by location until their visitation
// queue is exhausted or they disengage.
//
// # Scheduling model
//
// One traversal is a single-threaded, cooperative state machine. The walker
// holds a FIFO-by-default queue of pending locations. Dequeuing a location
// makes it Active, fires its matching entry abilities (resolved by
// internal/dispatch), and then defers the location onto an exit stack
// instead of firing exits immediately. When the queue empties, exits unwind
// in strict LIFO order relative to entry, so for a chain Root→A→B→C built by
// sequential visits, exits fire C, B, A, Root.
//
// Abilities steer the traversal through their Context:
//
//   - Visit / VisitAt queue further locations. Appending yields
//     breadth-first order; inserting at index 0 yields depth-first order for
//     that branch. Out-of-range indexes clamp to append. Visit returns the
//     number of targets queued so a caller can run an else body
//     synchronously when the computed target set was empty.
//   - Report appends a value to the walker's ordered report buffer.
//   - Disengage discards the pending queue. Deferred exits still unwind:
//     disengage short-circuits forward exploration, not backward cleanup.
//
// An error returned from any ability is fatal to that walker only: the
// traversal stops in the Failed state and the error propagates out of Spawn
// alongside the partial Result, so accumulated reports are never mistaken
// for a completed traversal's.
//
// # Concurrency
//
// Independent traversals may run concurrently against the same store; the
// store serializes conflicting writes. Within one traversal nothing runs in
// parallel and there are no suspension points.
package walker
