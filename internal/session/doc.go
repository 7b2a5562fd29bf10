// Package session holds the aggregate root of one feature-delivery run.
//
// A Session exclusively owns its ArtifactStore, its TestStatusTracker, its
// gate log and its commit history. Nothing is shared between sessions, so
// concurrent sessions need no locking; a single session is driven by one
// goroutine at a time.
//
// INVARIANTS:
//   - The objective is immutable once the session is created
//   - The phase only moves forward and never enters a phase whose
//     prerequisite artifact is absent
//   - Acceptance is only reported Green by an explicit acceptance evaluation
//     that follows at least one unit test transition
//   - Artifacts and commits are never deleted; new versions are appended
//   - Every state change is stamped with a logical seq, never wall-clock time
package session
