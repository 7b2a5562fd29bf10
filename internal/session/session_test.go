package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pedro/internal/ir"
)

func planned() []ir.Artifact {
	return []ir.Artifact{
		{Kind: ir.KindUserStory, Name: "story", Status: ir.StatusApproved, QualityScore: ir.Int64(92), SizeDays: ir.Int64(3)},
		{Kind: ir.KindArchitecturePlan, Name: "plan", Status: ir.StatusApproved},
	}
}

func newSession(t *testing.T, seed ...ir.Artifact) *Session {
	t.Helper()
	s, err := New("s-1", "add checkout discount", ir.ScopeBoundary{Include: []string{"discount"}}, seed...)
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", "objective", ir.ScopeBoundary{})
	require.Error(t, err)

	_, err = New("s-1", "  ", ir.ScopeBoundary{})
	require.Error(t, err)

	_, err = New("s-1", "objective", ir.ScopeBoundary{}, ir.Artifact{Kind: "Widget", Name: "w"})
	require.Error(t, err)
}

func TestNew_SeedsArtifactsAndTests(t *testing.T) {
	seed := append(planned(),
		ir.Artifact{Kind: ir.KindAcceptanceTest, Name: "checkout", Status: ir.StatusRed},
		ir.Artifact{Kind: ir.KindUnitTest, Name: "u1", Status: ir.StatusGreen},
	)
	s := newSession(t, seed...)

	assert.Equal(t, ir.PhasePlanning, s.Phase())
	assert.Equal(t, ir.SessionRunning, s.Status())
	assert.Equal(t, int64(5), s.Seq())
	assert.Equal(t, ir.EventSessionStarted, s.Events()[0].Type)

	tests := s.Tests()
	assert.True(t, tests.AcceptanceRed())
	assert.Equal(t, 0, tests.UnitTransitionsSinceEvaluation())
	out, ok := tests.Outcome(ir.KindUnitTest, "u1")
	require.True(t, ok)
	assert.Equal(t, ir.OutcomeGreen, out)
}

func TestEnter_ForwardOnlyWithPrerequisites(t *testing.T) {
	s := newSession(t)

	err := s.Enter(ir.EntryPoint{Phase: ir.PhaseTestWriting})
	require.True(t, IsPrerequisiteError(err))
	assert.Equal(t, ir.PhasePlanning, s.Phase())

	_, err = s.RecordArtifact(ir.Artifact{Kind: ir.KindArchitecturePlan, Name: "plan"})
	require.NoError(t, err)
	require.NoError(t, s.Enter(ir.EntryPoint{Phase: ir.PhaseTestWriting}))

	err = s.Enter(ir.EntryPoint{Phase: ir.PhasePlanning, SubStep: ir.SubStepStoryReview})
	require.ErrorIs(t, err, ErrPhaseRegression)

	err = s.Enter(ir.EntryPoint{Phase: ir.PhaseIntegration})
	var pe *PrerequisiteError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ir.PhaseIntegration, pe.Phase)
}

func TestEnter_NeverPastCommitWhileAcceptanceRed(t *testing.T) {
	seed := append(planned(),
		ir.Artifact{Kind: ir.KindAcceptanceTest, Name: "checkout", Status: ir.StatusRed},
		ir.Artifact{Kind: ir.KindReviewReport, Name: "review", Status: ir.StatusApproved},
	)
	s := newSession(t, seed...)
	require.True(t, IsPrerequisiteError(s.Enter(ir.EntryPoint{Phase: ir.PhaseCommit})))
}

func TestRecordTestOutcome_AcceptanceByAssertionRejected(t *testing.T) {
	s := newSession(t, planned()...)
	_, err := s.RecordArtifact(ir.Artifact{Kind: ir.KindAcceptanceTest, Name: "checkout"})
	require.NoError(t, err)
	require.NoError(t, s.RecordTestOutcome(ir.KindAcceptanceTest, "checkout", ir.OutcomeRed))

	seq := s.Seq()
	err = s.RecordTestOutcome(ir.KindAcceptanceTest, "checkout", ir.OutcomeGreen)
	require.ErrorIs(t, err, ErrAcceptanceByAssertion)
	assert.Equal(t, seq, s.Seq(), "a rejected evaluation leaves no trace")

	_, err = s.RecordArtifact(ir.Artifact{Kind: ir.KindUnitTest, Name: "u1"})
	require.NoError(t, err)
	require.NoError(t, s.RecordTestOutcome(ir.KindUnitTest, "u1", ir.OutcomeRed))
	require.NoError(t, s.RecordTestOutcome(ir.KindUnitTest, "u1", ir.OutcomeGreen))
	require.NoError(t, s.RecordTestOutcome(ir.KindAcceptanceTest, "checkout", ir.OutcomeGreen))

	a, ok := s.Artifact(ir.KindAcceptanceTest, "checkout")
	require.True(t, ok)
	assert.Equal(t, ir.StatusGreen, a.Status)
	assert.False(t, s.Tests().AcceptanceRed())
}

func TestSetArtifactStatus_RefusesTests(t *testing.T) {
	s := newSession(t, planned()...)
	_, err := s.RecordArtifact(ir.Artifact{Kind: ir.KindAcceptanceTest, Name: "checkout"})
	require.NoError(t, err)

	_, err = s.SetArtifactStatus(ir.KindAcceptanceTest, "checkout", ir.StatusGreen)
	require.Error(t, err)
	assert.True(t, s.Tests().AcceptanceRed())

	_, err = s.SetArtifactStatus(ir.KindReviewReport, "missing", ir.StatusApproved)
	require.ErrorIs(t, err, ErrUnknownArtifact)
}

func TestGates_OutstandingUntilResolved(t *testing.T) {
	s := newSession(t)
	_, err := s.RecordGate(ir.GateResult{ChangeID: "c1", Verdict: ir.VerdictProceed})
	require.NoError(t, err)
	_, err = s.RecordGate(ir.GateResult{ChangeID: "c2", Verdict: ir.VerdictModify, Reasons: []ir.GateReason{ir.ReasonSolvesFutureProblem}})
	require.NoError(t, err)

	require.Len(t, s.OutstandingGates(), 1)
	assert.Equal(t, 0, s.ResolveGates("c1"))
	assert.Equal(t, 1, s.ResolveGates("c2"))
	assert.Empty(t, s.OutstandingGates())

	ev := s.Events()[len(s.Events())-1]
	assert.Equal(t, ir.EventGateEvaluated, ev.Type)
	assert.Equal(t, "SolvesFutureProblem", ev.Attrs["reasons"])
}

func TestSuspendResume(t *testing.T) {
	s := newSession(t)
	proposal := &ir.ProposedChange{ID: "c1", Summary: "add cache"}

	sus, err := s.Suspend(ir.Suspension{Code: ir.CodeGateEscalation, Message: "needs decision", Proposal: proposal})
	require.NoError(t, err)
	assert.Equal(t, ir.SessionSuspended, s.Status())
	assert.NotEmpty(t, sus.Token)
	assert.Equal(t, s.Seq(), sus.Seq)
	assert.Equal(t, ir.PhasePlanning, sus.Phase)

	_, err = s.RecordArtifact(ir.Artifact{Kind: ir.KindUserStory, Name: "story"})
	require.NoError(t, err, "a suspended session still accepts corrected artifacts")

	_, err = s.Resume("bogus", ir.ScopeDecision{})
	require.ErrorIs(t, err, ErrTokenMismatch)

	prev, err := s.Resume(sus.Token, ir.ScopeDecision{Include: []string{"cache"}})
	require.NoError(t, err)
	assert.Equal(t, ir.CodeGateEscalation, prev.Code)
	require.NotNil(t, prev.Proposal)
	assert.Equal(t, "c1", prev.Proposal.ID)
	assert.True(t, s.Scope().Includes("cache"))
	assert.Equal(t, ir.SessionRunning, s.Status())
	assert.Nil(t, s.Suspension())

	_, err = s.Resume("", ir.ScopeDecision{})
	require.ErrorIs(t, err, ErrNotSuspended)
}

func TestCorrect_RecordsLikeSeeds(t *testing.T) {
	s := newSession(t, append(planned(),
		ir.Artifact{Kind: ir.KindAcceptanceTest, Name: "checkout", Status: ir.StatusGreen},
	)...)
	before, ok := s.Artifact(ir.KindAcceptanceTest, "checkout")
	require.True(t, ok)
	require.False(t, s.Tests().AcceptanceRed())

	got, err := s.Correct(
		ir.Artifact{Kind: ir.KindAcceptanceTest, Name: "checkout", Status: ir.StatusRed},
		ir.Artifact{Kind: ir.KindUnitTest, Name: "adds-item", Status: ir.StatusGreen},
	)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Greater(t, got[0].Seq, before.Seq)

	tests := s.Tests()
	assert.True(t, tests.AcceptanceRed())
	assert.Zero(t, tests.UnitTransitionsSinceEvaluation())
	out, ok := tests.Outcome(ir.KindUnitTest, "adds-item")
	require.True(t, ok)
	assert.Equal(t, ir.OutcomeGreen, out)

	_, err = s.Correct(ir.Artifact{Kind: ir.KindDomainCode})
	require.Error(t, err)

	require.NoError(t, s.Cancel())
	_, err = s.Correct(ir.Artifact{Kind: ir.KindDomainCode, Name: "cart"})
	assert.ErrorIs(t, err, ErrTerminal)
}

func TestHalt_FatalCodesOnly(t *testing.T) {
	s := newSession(t)
	_, err := s.Halt(ir.CodeGateViolation, "not fatal")
	require.Error(t, err)

	sus, err := s.Halt(ir.CodeAcceptanceTestStalled, "stalled")
	require.NoError(t, err)
	assert.Equal(t, ir.SessionHalted, s.Status())
	assert.Equal(t, ir.EventSessionHalted, s.Events()[len(s.Events())-1].Type)
	assert.Equal(t, ir.CodeAcceptanceTestStalled, s.Suspension().Code)
	assert.Equal(t, sus.Token, s.Suspension().Token)
}

func TestCancel_KeepsCommitsAndArtifacts(t *testing.T) {
	s := newSession(t, planned()...)
	_, err := s.AppendCommit(ir.Commit{ID: "abc", ChangeKind: ir.ChangeBehavioral, Message: "m", TestStatusAtCommit: ir.SummaryAllGreen})
	require.NoError(t, err)
	require.NoError(t, s.SetLoop(LoopState{Iteration: 2, Candidate: &ir.Artifact{Kind: ir.KindDomainCode, Name: "c9"}}))

	require.NoError(t, s.Cancel())
	assert.Equal(t, ir.SessionCancelled, s.Status())
	assert.Len(t, s.Commits(), 1)
	assert.True(t, s.Artifacts().Has(ir.KindUserStory))
	assert.Nil(t, s.Loop().Candidate)
	assert.Equal(t, "DomainCode/c9", s.Events()[len(s.Events())-1].Attrs["discarded"])

	_, err = s.RecordArtifact(ir.Artifact{Kind: ir.KindUnitTest, Name: "u"})
	require.ErrorIs(t, err, ErrTerminal)
	require.ErrorIs(t, s.Cancel(), ErrTerminal)
}

func TestComplete_RequiresCommitPhase(t *testing.T) {
	s := newSession(t)
	require.Error(t, s.Complete())
}

func TestState_RoundTripThroughJSON(t *testing.T) {
	s := newSession(t, planned()...)
	_, err := s.RecordArtifact(ir.Artifact{Kind: ir.KindAcceptanceTest, Name: "checkout"})
	require.NoError(t, err)
	require.NoError(t, s.Enter(ir.EntryPoint{Phase: ir.PhaseDomainImplementation}))
	require.NoError(t, s.SetLoop(LoopState{Iteration: 1, Stage: "implement", Target: "u1"}))
	_, err = s.Suspend(ir.Suspension{Code: ir.CodeGateEscalation, Message: "m"})
	require.NoError(t, err)

	data, err := json.Marshal(s.State())
	require.NoError(t, err)
	var st State
	require.NoError(t, json.Unmarshal(data, &st))

	restored, err := Restore(st)
	require.NoError(t, err)
	assert.Equal(t, s.State(), restored.State())
	assert.Equal(t, ir.PhaseDomainImplementation, restored.Phase())
	assert.Equal(t, "u1", restored.Loop().Target)
	assert.True(t, restored.Tests().AcceptanceRed())
}

func TestRestore_RejectsUnknownVersion(t *testing.T) {
	_, err := Restore(State{Version: "0", ID: "x"})
	require.Error(t, err)
}
