package engine

import (
	"context"
	"fmt"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
)

func (q *Sequencer) planStep(ctx context.Context, s *session.Session) error {
	switch s.SubStep() {
	case ir.SubStepStoryAuthoring:
		return q.authorStory(ctx, s)
	case ir.SubStepStoryReview:
		return q.scoreStory(ctx, s)
	case ir.SubStepStorySlicing:
		return q.reshapeStory(ctx, s, CapStorySlice)
	case ir.SubStepStoryRefinement:
		return q.reshapeStory(ctx, s, CapStoryRefine)
	case ir.SubStepArchitecturePlanning:
		return q.planArchitecture(ctx, s)
	}
	return q.advance(s)
}

// recordStory records a story version. Scores only ever come from the
// QualityScorer, so a freshly written story is unscored.
func (q *Sequencer) recordStory(s *session.Session, story ir.Artifact) error {
	story.QualityScore = nil
	story.SizeDays = nil
	story.Status = ir.StatusPending
	if _, err := s.RecordArtifact(story); err != nil {
		return err
	}
	return q.advance(s)
}

func (q *Sequencer) authorStory(ctx context.Context, s *session.Session) error {
	loop := s.Loop()
	story, ok, err := q.invoke(ctx, s, CapUserStory, AgentRequest{Feedback: loop.Feedback, Attempt: loop.Revisions + 1})
	if !ok || err != nil {
		return err
	}
	return q.recordStory(s, story)
}

func (q *Sequencer) scoreStory(ctx context.Context, s *session.Session) error {
	story, ok := s.Artifacts().Latest(ir.KindUserStory)
	if !ok {
		return q.advance(s)
	}
	qa, err := retry(ctx, q, "score "+story.Ref(), func() (ir.QualityAssessment, error) {
		return q.scorer.Score(ctx, story)
	})
	if err == nil && (qa.Score < 0 || qa.Score > 100) {
		err = fmt.Errorf("score %d is outside 0-100", qa.Score)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return q.suspend(s, ir.Suspension{
			Code:    ir.CodeAgentInvocationFailure,
			Message: fmt.Sprintf("score %s: %v", story.Ref(), err),
		})
	}

	th := q.resolver.Thresholds()
	story.QualityScore = ir.Int64(qa.Score)
	story.SizeDays = ir.Int64(qa.SizeDays)
	story.Status = ir.StatusPending
	if qa.Score >= th.Quality {
		story.Status = ir.StatusApproved
	}
	if _, err := s.RecordArtifact(story); err != nil {
		return err
	}
	q.logger.Info("story scored",
		"session", s.ID(),
		"story", story.Name,
		"score", qa.Score,
		"size_days", qa.SizeDays,
	)
	return q.advance(s)
}

// reshapeStory slices or refines a story that scored below the threshold.
// The result is re-scored on the next step.
func (q *Sequencer) reshapeStory(ctx context.Context, s *session.Session, capability Capability) error {
	story, ok := s.Artifacts().Latest(ir.KindUserStory)
	if !ok {
		return q.advance(s)
	}
	th := q.resolver.Thresholds()
	loop := s.Loop()
	if loop.Revisions >= q.maxRevisions {
		return q.suspend(s, ir.Suspension{
			Code:    ir.CodeStoryBelowThreshold,
			Message: fmt.Sprintf("%s still scores %d (threshold %d) after %d revisions", story.Ref(), scoreOf(story), th.Quality, loop.Revisions),
		})
	}
	loop.Revisions++
	if err := s.SetLoop(loop); err != nil {
		return err
	}

	feedback := fmt.Sprintf("quality score %d is below %d", scoreOf(story), th.Quality)
	if capability == CapStorySlice {
		feedback = fmt.Sprintf("%s; slice it into pieces of at most %d days", feedback, th.SliceMaxDays)
	}
	next, ok, err := q.invoke(ctx, s, capability, AgentRequest{
		Feedback: []string{feedback},
		Attempt:  loop.Revisions,
		Inputs:   []ir.Artifact{story},
	})
	if !ok || err != nil {
		return err
	}
	return q.recordStory(s, next)
}

func (q *Sequencer) planArchitecture(ctx context.Context, s *session.Session) error {
	req := AgentRequest{}
	if story, ok := s.Artifacts().Latest(ir.KindUserStory); ok {
		req.Inputs = []ir.Artifact{story}
	}
	plan, ok, err := q.invoke(ctx, s, CapArchitecturePlan, req)
	if !ok || err != nil {
		return err
	}
	if plan.Status == "" {
		plan.Status = ir.StatusApproved
	}
	if _, err := s.RecordArtifact(plan); err != nil {
		return err
	}
	return q.advance(s)
}

func (q *Sequencer) testWritingStep(ctx context.Context, s *session.Session) error {
	_, ok, err := q.author(ctx, s, CapAcceptanceTest)
	if !ok || err != nil {
		return err
	}
	return q.advance(s)
}

func scoreOf(a ir.Artifact) int64 {
	if a.QualityScore == nil {
		return 0
	}
	return *a.QualityScore
}
