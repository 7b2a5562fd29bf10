// Package policy decides whether a proposed commit may be recorded.
package policy

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
)

// RejectReason names the failed commit precondition.
type RejectReason string

const (
	NotAllGreen             RejectReason = "NotAllGreen"
	UnresolvedGate          RejectReason = "UnresolvedGate"
	MixedChangeKind         RejectReason = "MixedChangeKind"
	StructuralBehavioralMix RejectReason = "StructuralBehavioralMix"
)

// RejectedError is returned when a commit proposal fails a precondition.
type RejectedError struct {
	Reason RejectReason
	Detail string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("commit rejected (%s): %s", e.Reason, e.Detail)
}

// IsRejected reports whether err is a RejectedError.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// ReasonOf returns the reject reason carried by err, if any.
func ReasonOf(err error) (RejectReason, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}

// CommitPolicy validates and records commits.
type CommitPolicy struct{}

// New returns a CommitPolicy.
func New() *CommitPolicy {
	return &CommitPolicy{}
}

// TryCommit records p on s and returns its content-addressed id.
//
// Submitting content that was already recorded returns the existing id and
// records nothing. Otherwise the preconditions are checked in order and the
// first failure is returned as a *RejectedError.
func (cp *CommitPolicy) TryCommit(s *session.Session, p ir.CommitProposal) (string, error) {
	if strings.TrimSpace(p.Message) == "" {
		return "", errors.New("commit message is required")
	}
	id, err := ir.CommitID(p)
	if err != nil {
		return "", err
	}
	if _, ok := s.CommitByID(id); ok {
		return id, nil
	}

	kind, rerr := cp.check(s, p)
	if rerr != nil {
		s.Emit(ir.EventCommitRejected, map[string]string{
			"id":     id,
			"reason": string(rerr.Reason),
			"detail": rerr.Detail,
		})
		return "", rerr
	}

	_, err = s.AppendCommit(ir.Commit{
		ID:                 id,
		ChangeKind:         kind,
		Message:            p.Message,
		TestStatusAtCommit: ir.SummaryAllGreen,
		Changes:            p.Changes,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (cp *CommitPolicy) check(s *session.Session, p ir.CommitProposal) (ir.ChangeKind, *RejectedError) {
	if summary := s.Tests().Summary(); summary != ir.SummaryAllGreen {
		return "", &RejectedError{Reason: NotAllGreen, Detail: fmt.Sprintf("test status is %s", summary)}
	}
	if open := s.OutstandingGates(); len(open) > 0 {
		ids := make([]string, len(open))
		for i, g := range open {
			ids[i] = fmt.Sprintf("%s=%s", g.Result.ChangeID, g.Result.Verdict)
		}
		return "", &RejectedError{Reason: UnresolvedGate, Detail: "outstanding gate results: " + strings.Join(ids, ", ")}
	}

	var changeKinds []ir.ChangeKind
	for _, c := range p.Changes {
		if c.Kind != "" && !slices.Contains(changeKinds, c.Kind) {
			changeKinds = append(changeKinds, c.Kind)
		}
	}
	if len(changeKinds) > 1 {
		return "", &RejectedError{Reason: MixedChangeKind, Detail: "changes mix Structural and Behavioral work"}
	}
	if p.Kind != "" && len(changeKinds) == 1 && changeKinds[0] != p.Kind {
		return "", &RejectedError{Reason: StructuralBehavioralMix,
			Detail: fmt.Sprintf("%s commit carries pending %s changes; split it", p.Kind, changeKinds[0])}
	}

	kinds := p.Kinds()
	if len(kinds) == 0 {
		return "", &RejectedError{Reason: MixedChangeKind, Detail: "proposal declares no change kind"}
	}
	return kinds[0], nil
}
