// Package store provides SQLite-backed persistence for sessions.
//
// A session is stored as one row holding its serialized state, plus its
// append-only event trace and its commits in their own tables so they can be
// listed without decoding the state.
//
// # Patterns
//
// Logical ordering:
//   - Events and commits are ordered by the session's logical seq, never by
//     wall-clock time
//   - Reads use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// Idempotent appends:
//   - Events are keyed by (session_id, seq), commits by (session_id, id)
//   - Re-saving a session inserts only what is new
//
// Stale writers:
//   - Save refuses a state whose seq is older than the stored one, so a
//     process holding an outdated copy cannot roll a session back
package store
