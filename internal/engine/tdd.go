package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
)

// Loop stages. The stage is persisted in the session loop cursor so a
// suspended loop resumes exactly where it stopped.
const (
	stageConfirm   = "confirm"
	stageNext      = "next"
	stageTest      = "test"
	stageImplement = "implement"
	stageVerify    = "verify"
	stageEvaluate  = "evaluate"
	stageCommit    = "commit"
	stageAccept    = "accept"
)

func (q *Sequencer) setStage(s *session.Session, stage string) error {
	loop := s.Loop()
	loop.Stage = stage
	return s.SetLoop(loop)
}

// domainStep runs one step of the red/green loop.
//
// Each iteration writes one failing unit test, implements exactly that test,
// gates the implementation, turns the test Green, re-evaluates the acceptance
// test and commits. The loop ends when the acceptance test reports Green,
// which is only accepted after a unit test transition.
func (q *Sequencer) domainStep(ctx context.Context, s *session.Session) error {
	loop := s.Loop()
	switch loop.Stage {
	case "":
		loop.Stage = stageNext
		if s.Tests().Evaluations() == 0 {
			loop.Stage = stageConfirm
		}
		return s.SetLoop(loop)

	case stageConfirm:
		if ok, err := q.evaluateAcceptance(ctx, s); !ok || err != nil {
			return err
		}
		return q.setStage(s, stageNext)

	case stageNext:
		return q.nextIteration(s)

	case stageTest:
		if _, ok, err := q.author(ctx, s, CapUnitTest); !ok || err != nil {
			return err
		}
		return q.setStage(s, stageImplement)

	case stageImplement:
		if ok, err := q.implement(ctx, s, CapDomainCode, ir.KindUnitTest, ir.ChangeBehavioral); !ok || err != nil {
			return err
		}
		return q.setStage(s, stageVerify)

	case stageVerify:
		ok, err := q.verify(ctx, s, ir.KindUnitTest, true)
		if err != nil {
			return err
		}
		if !ok {
			return q.setStage(s, stageImplement)
		}
		return q.setStage(s, stageEvaluate)

	case stageEvaluate:
		if ok, err := q.evaluateAcceptance(ctx, s); !ok || err != nil {
			return err
		}
		return q.setStage(s, stageCommit)

	case stageCommit:
		refs := append([]string{string(ir.KindUnitTest) + "/" + loop.Target}, loop.Changes...)
		ok, err := q.commit(s, ir.CommitProposal{
			Kind:    ir.ChangeBehavioral,
			Message: fmt.Sprintf("%s: make unit test pass", loop.Target),
			Changes: pinned(s, ir.ChangeBehavioral, refs...),
		})
		if !ok || err != nil {
			return err
		}
		if s.Tests().AcceptanceRed() {
			return q.setStage(s, stageNext)
		}
		return q.setStage(s, stageAccept)

	case stageAccept:
		acc := s.Tests().Acceptance()
		ok, err := q.commit(s, ir.CommitProposal{
			Kind:    ir.ChangeBehavioral,
			Message: fmt.Sprintf("%s: acceptance test passes", acc),
			Changes: pinned(s, ir.ChangeBehavioral, string(ir.KindAcceptanceTest)+"/"+acc),
		})
		if !ok || err != nil {
			return err
		}
		q.logger.Info("acceptance test green",
			"session", s.ID(),
			"acceptance", acc,
			"iterations", loop.Iteration,
		)
		return q.advance(s)
	}
	return fmt.Errorf("unknown loop stage %q", loop.Stage)
}

// nextIteration starts a new red/green iteration, or halts the session when
// the iteration budget is spent.
func (q *Sequencer) nextIteration(s *session.Session) error {
	loop := s.Loop()
	quota := NewIterationQuota(q.maxIterations+loop.Budget, loop.Iteration)
	if err := quota.Check(s.ID()); err != nil {
		return q.halt(s, ir.CodeAcceptanceTestStalled, err.Error())
	}

	next := session.LoopState{
		Iteration: quota.Current(),
		Budget:    loop.Budget,
		Stage:     stageTest,
	}
	// A unit test left failing by earlier work is finished before a new one
	// is written.
	for _, e := range s.Tests().Entries() {
		if e.Kind == ir.KindUnitTest && e.Outcome != ir.OutcomeGreen {
			next.Target = e.Name
			next.Stage = stageImplement
			break
		}
	}
	q.logger.Info("red/green iteration",
		"session", s.ID(),
		"iteration", next.Iteration,
		"limit", quota.Limit(),
	)
	return s.SetLoop(next)
}

// evaluateAcceptance re-runs the acceptance test and records the outcome.
// Green without a preceding unit test transition halts the session.
func (q *Sequencer) evaluateAcceptance(ctx context.Context, s *session.Session) (bool, error) {
	acc, ok := s.Artifact(ir.KindAcceptanceTest, s.Tests().Acceptance())
	if !ok {
		return false, q.halt(s, ir.CodeInconsistentArtifactState, "no acceptance test is tracked")
	}
	out, ok, err := q.runTest(ctx, s, acc)
	if !ok || err != nil {
		return false, err
	}
	if err := s.RecordTestOutcome(acc.Kind, acc.Name, out); err != nil {
		if errors.Is(err, session.ErrAcceptanceByAssertion) {
			return false, q.halt(s, ir.CodeInconsistentArtifactState,
				fmt.Sprintf("%s reported Green without a unit test transition", acc.Ref()))
		}
		return false, err
	}
	q.logger.Info("acceptance evaluated",
		"session", s.ID(),
		"acceptance", acc.Name,
		"outcome", out,
		"evaluation", s.Tests().Evaluations(),
	)
	return true, nil
}
