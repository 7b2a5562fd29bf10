// Package ir provides the value types shared by every part of the pedro
// workflow engine: phases, artifacts, gate results, commits, suspensions and
// trace events.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere; quality scores and sizes are int64
//   - All JSON tags use snake_case
//   - Logical sequence numbers (seq) only, never wall-clock timestamps
//   - Content-addressed ids (commits, suspension tokens) are computed from
//     canonical JSON, see hash.go
package ir
