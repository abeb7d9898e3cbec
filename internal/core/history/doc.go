// Package history implements the authoritative history core of a
// collaborative drawing session.
//
// A History owns the single ordered log of operations that defines a
// session's state: it enforces the session's byte budget, tracks the
// monotonic position index and reset epoch, and coordinates online
// compaction, where a designated client streams back a freshly rendered
// canvas snapshot that atomically replaces the replayable prefix of the
// log while ordinary traffic keeps flowing.
//
// The package also carries the session-scoped bookkeeping that lives
// next to the log in practice: the invite table, the thumbnail
// generation coordinator, and catch-up key allocation.
//
// Histories hold no internal locks. All mutating operations for one
// session must be serialized by the caller; the session registry does
// this by routing every operation for a session through a single worker
// goroutine. Cross-session operations are fully independent.
package history
