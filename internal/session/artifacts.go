package session

import (
	"fmt"
	"slices"

	"github.com/roach88/pedro/internal/ir"
)

// ArtifactStore tracks every version of every artifact recorded in a session.
// Versions are appended in seq order and never removed.
//
// The store is mutated only through its owning Session; other components get
// an immutable ArtifactSnapshot.
type ArtifactStore struct {
	history []ir.Artifact
}

// NewArtifactStore returns a store holding the given history.
func NewArtifactStore(history ...ir.Artifact) *ArtifactStore {
	return &ArtifactStore{history: slices.Clone(history)}
}

// Record appends a new artifact version.
func (s *ArtifactStore) Record(a ir.Artifact) {
	s.history = append(s.history, a)
}

// SetStatus appends a new version of an existing artifact with another status.
func (s *ArtifactStore) SetStatus(kind ir.ArtifactKind, name string, status ir.ArtifactStatus, seq int64) (ir.Artifact, error) {
	cur, ok := s.Get(kind, name)
	if !ok {
		return ir.Artifact{}, fmt.Errorf("%w: %s/%s", ErrUnknownArtifact, kind, name)
	}
	cur.Status = status
	cur.Seq = seq
	s.Record(cur)
	return cur, nil
}

// Get returns the latest version of the named artifact.
func (s *ArtifactStore) Get(kind ir.ArtifactKind, name string) (ir.Artifact, bool) {
	for i := len(s.history) - 1; i >= 0; i-- {
		a := s.history[i]
		if a.Kind == kind && a.Name == name {
			return a, true
		}
	}
	return ir.Artifact{}, false
}

// Latest returns the most recently recorded artifact of a kind.
func (s *ArtifactStore) Latest(kind ir.ArtifactKind) (ir.Artifact, bool) {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Kind == kind {
			return s.history[i], true
		}
	}
	return ir.Artifact{}, false
}

// Has reports whether any artifact of kind was recorded.
func (s *ArtifactStore) Has(kind ir.ArtifactKind) bool {
	_, ok := s.Latest(kind)
	return ok
}

// All returns the latest version of each artifact of a kind, ordered by the
// first time each name was recorded.
func (s *ArtifactStore) All(kind ir.ArtifactKind) []ir.Artifact {
	var names []string
	for _, a := range s.history {
		if a.Kind == kind && !slices.Contains(names, a.Name) {
			names = append(names, a.Name)
		}
	}
	out := make([]ir.Artifact, 0, len(names))
	for _, name := range names {
		a, _ := s.Get(kind, name)
		out = append(out, a)
	}
	return out
}

// History returns every recorded version in seq order.
func (s *ArtifactStore) History() []ir.Artifact {
	return slices.Clone(s.history)
}

// Snapshot returns an immutable view of the latest artifact versions.
func (s *ArtifactStore) Snapshot() ArtifactSnapshot {
	byKind := make(map[ir.ArtifactKind][]ir.Artifact)
	for _, kind := range ir.ArtifactKinds() {
		if all := s.All(kind); len(all) > 0 {
			byKind[kind] = all
		}
	}
	return ArtifactSnapshot{byKind: byKind}
}

// ArtifactSnapshot is an immutable view of the latest version of every
// artifact. The zero value is an empty snapshot.
type ArtifactSnapshot struct {
	byKind map[ir.ArtifactKind][]ir.Artifact
}

// NewSnapshot builds a snapshot directly from artifacts. When several entries
// share a kind and name the last one wins.
func NewSnapshot(artifacts ...ir.Artifact) ArtifactSnapshot {
	store := NewArtifactStore()
	for _, a := range artifacts {
		store.Record(a)
	}
	return store.Snapshot()
}

// Latest returns the last artifact of kind in recording order.
func (s ArtifactSnapshot) Latest(kind ir.ArtifactKind) (ir.Artifact, bool) {
	all := s.byKind[kind]
	if len(all) == 0 {
		return ir.Artifact{}, false
	}
	latest := all[0]
	for _, a := range all[1:] {
		if a.Seq >= latest.Seq {
			latest = a
		}
	}
	return latest, true
}

// Has reports whether the snapshot contains an artifact of kind.
func (s ArtifactSnapshot) Has(kind ir.ArtifactKind) bool {
	return len(s.byKind[kind]) > 0
}

// All returns the artifacts of kind.
func (s ArtifactSnapshot) All(kind ir.ArtifactKind) []ir.Artifact {
	return slices.Clone(s.byKind[kind])
}

// Count returns the number of distinct artifacts of kind.
func (s ArtifactSnapshot) Count(kind ir.ArtifactKind) int {
	return len(s.byKind[kind])
}

// Hash returns a content hash of the snapshot. Equal snapshots hash equally.
func (s ArtifactSnapshot) Hash() (string, error) {
	var entries []map[string]any
	for _, kind := range ir.ArtifactKinds() {
		for _, a := range s.byKind[kind] {
			e := map[string]any{
				"kind":   string(a.Kind),
				"name":   a.Name,
				"status": string(a.Status),
			}
			if a.QualityScore != nil {
				e["quality_score"] = *a.QualityScore
			}
			if a.SizeDays != nil {
				e["size_days"] = *a.SizeDays
			}
			entries = append(entries, e)
		}
	}
	return ir.SnapshotHash(entries)
}
