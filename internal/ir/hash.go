package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows future algorithm migration.
const (
	DomainCommit     = "pedro/commit/v1"
	DomainSuspension = "pedro/suspension/v1"
	DomainSnapshot   = "pedro/snapshot/v1"
)

// hashWithDomain computes SHA-256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CommitID computes the content-addressed id of a commit proposal.
// Identical content yields the same id, so resubmitting a commit is a no-op.
// Each change is hashed with the artifact version it pins, so reworking an
// artifact under the same name yields a new id.
func CommitID(p CommitProposal) (string, error) {
	kinds := p.Kinds()
	kindNames := make([]string, len(kinds))
	for i, k := range kinds {
		kindNames[i] = string(k)
	}
	changes := make([]any, len(p.Changes))
	for i, c := range p.Changes {
		changes[i] = map[string]any{"kind": string(c.Kind), "ref": c.Ref, "seq": c.Seq}
	}
	obj := map[string]any{
		"kinds":   kindNames,
		"message": p.Message,
		"changes": changes,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CommitID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCommit, canonical), nil
}

// SuspensionToken computes the resume token of a suspension. The token binds
// the session, reason, phase and position in the trace.
func SuspensionToken(sessionID string, s Suspension) (string, error) {
	obj := map[string]any{
		"session_id": sessionID,
		"code":       string(s.Code),
		"phase":      s.Phase.String(),
		"sub_step":   string(s.SubStep),
		"iteration":  s.Iteration,
		"seq":        s.Seq,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SuspensionToken: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSuspension, canonical), nil
}

// SnapshotHash hashes an artifact snapshot given as canonical entries.
// Equal snapshots hash equally regardless of construction order.
func SnapshotHash(entries []map[string]any) (string, error) {
	list := make([]any, len(entries))
	for i, e := range entries {
		list[i] = e
	}
	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// MustCommitID is like CommitID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCommitID(p CommitProposal) string {
	id, err := CommitID(p)
	if err != nil {
		panic(err)
	}
	return id
}
