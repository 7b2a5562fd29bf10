package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
)

const (
	stageReview         = "review"
	stageRefactor       = "refactor"
	stageRefactorVerify = "refactor_verify"
	stageRefactorCommit = "refactor_commit"
)

// reviewStep asks for a review of the delivered slice. A rejected review is
// answered with a structural refactoring that must keep the acceptance test
// Green; the review then repeats.
func (q *Sequencer) reviewStep(ctx context.Context, s *session.Session) error {
	loop := s.Loop()
	switch loop.Stage {
	case "", stageReview:
		req := AgentRequest{Feedback: loop.Feedback, Attempt: loop.Revisions + 1}
		snap := s.Artifacts()
		for _, kind := range []ir.ArtifactKind{ir.KindUserStory, ir.KindAcceptanceTest, ir.KindDomainCode, ir.KindRepository, ir.KindController} {
			req.Inputs = append(req.Inputs, snap.All(kind)...)
		}
		report, ok, err := q.invoke(ctx, s, CapReview, req)
		if !ok || err != nil {
			return err
		}
		if report.Status == "" {
			report.Status = ir.StatusPending
		}
		if _, err := s.RecordArtifact(report); err != nil {
			return err
		}
		q.logger.Info("review recorded",
			"session", s.ID(),
			"report", report.Name,
			"status", report.Status,
		)
		if report.Status == ir.StatusApproved {
			return q.advance(s)
		}

		loop = s.Loop()
		loop.Stage = stageRefactor
		loop.Target = s.Tests().Acceptance()
		feedback := strings.TrimSpace(report.Content)
		if feedback == "" {
			feedback = fmt.Sprintf("%s requested changes", report.Ref())
		}
		return q.revise(s, loop, ir.CodeReviewRejected, feedback)

	case stageRefactor:
		if ok, err := q.implement(ctx, s, CapRefactor, ir.KindAcceptanceTest, ir.ChangeStructural); !ok || err != nil {
			return err
		}
		return q.setStage(s, stageRefactorVerify)

	case stageRefactorVerify:
		ok, err := q.verify(ctx, s, ir.KindAcceptanceTest, false)
		if err != nil {
			return err
		}
		if !ok {
			return q.setStage(s, stageRefactor)
		}
		return q.setStage(s, stageRefactorCommit)

	case stageRefactorCommit:
		ok, err := q.commit(s, ir.CommitProposal{
			Kind:    ir.ChangeStructural,
			Message: fmt.Sprintf("refactor: %s", strings.Join(loop.Changes, ", ")),
			Changes: pinned(s, ir.ChangeStructural, loop.Changes...),
		})
		if !ok || err != nil {
			return err
		}
		loop = s.Loop()
		loop.Stage = stageReview
		loop.Changes = nil
		loop.Feedback = nil
		return s.SetLoop(loop)
	}
	return fmt.Errorf("unknown loop stage %q", loop.Stage)
}

// commitStep performs the final policy check and completes the session.
func (q *Sequencer) commitStep(s *session.Session) error {
	tests := s.Tests()
	if !tests.AllGreen() {
		return q.suspend(s, ir.Suspension{
			Code:    ir.CodeCommitRejected,
			Message: fmt.Sprintf("final check: test status is %s", tests.Summary()),
		})
	}
	if open := s.OutstandingGates(); len(open) > 0 {
		return q.suspend(s, ir.Suspension{
			Code:    ir.CodeCommitRejected,
			Message: fmt.Sprintf("final check: %d outstanding gate results", len(open)),
		})
	}
	if err := s.Complete(); err != nil {
		return err
	}
	q.logger.Info("session completed",
		"session", s.ID(),
		"commits", len(s.Commits()),
	)
	return nil
}
