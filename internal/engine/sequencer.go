package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/pedro/internal/classify"
	"github.com/roach88/pedro/internal/gate"
	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/policy"
	"github.com/roach88/pedro/internal/resolver"
	"github.com/roach88/pedro/internal/session"
)

// DefaultMaxRevisions bounds how often one piece of work is sent back to its
// collaborator before the session suspends.
const DefaultMaxRevisions = 3

// Sequencer drives sessions through the workflow phases.
//
// A Sequencer holds no per-session state; everything it needs to continue a
// session lives in the session's loop cursor. One Sequencer may drive many
// sessions, but each session must be driven by one goroutine at a time.
type Sequencer struct {
	agent  AgentInvoker
	scorer QualityScorer
	runner TestRunner

	resolver *resolver.Resolver
	gate     *gate.Evaluator
	policy   *policy.CommitPolicy
	logger   *slog.Logger

	maxIterations int
	maxRevisions  int
	retryMaxTries uint
	newBackOff    func() backoff.BackOff
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(q *Sequencer) {
		q.logger = l
	}
}

// WithMaxIterations bounds the red/green loop.
//
// Default: 25 iterations (DefaultMaxIterations).
func WithMaxIterations(n int) Option {
	return func(q *Sequencer) {
		q.maxIterations = n
	}
}

// WithMaxRevisions bounds revision requests for one piece of work.
func WithMaxRevisions(n int) Option {
	return func(q *Sequencer) {
		q.maxRevisions = n
	}
}

// WithThresholds sets the planning thresholds.
func WithThresholds(th resolver.Thresholds) Option {
	return func(q *Sequencer) {
		q.resolver = resolver.New(th)
	}
}

// WithRetry sets the collaborator retry policy. newBackOff is called once per
// collaborator call.
func WithRetry(maxTries uint, newBackOff func() backoff.BackOff) Option {
	return func(q *Sequencer) {
		q.retryMaxTries = maxTries
		if newBackOff != nil {
			q.newBackOff = newBackOff
		}
	}
}

// New creates a Sequencer over the three collaborators.
func New(agent AgentInvoker, scorer QualityScorer, runner TestRunner, opts ...Option) *Sequencer {
	q := &Sequencer{
		agent:         agent,
		scorer:        scorer,
		runner:        runner,
		resolver:      resolver.New(resolver.DefaultThresholds()),
		gate:          gate.New(),
		policy:        policy.New(),
		logger:        slog.Default(),
		maxIterations: DefaultMaxIterations,
		maxRevisions:  DefaultMaxRevisions,
		retryMaxTries: DefaultRetryMaxTries,
		newBackOff:    defaultBackOff,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Outcome summarises where a session stopped.
type Outcome struct {
	SessionID  string
	Status     ir.SessionStatus
	Phase      ir.Phase
	SubStep    ir.SubStep
	Suspension *ir.Suspension
	Commits    int
}

func outcomeOf(s *session.Session) Outcome {
	return Outcome{
		SessionID:  s.ID(),
		Status:     s.Status(),
		Phase:      s.Phase(),
		SubStep:    s.SubStep(),
		Suspension: s.Suspension(),
		Commits:    len(s.Commits()),
	}
}

// ResumeInput is what an external caller supplies to continue a session.
type ResumeInput struct {
	// Token must match the suspension token when set.
	Token string
	// Decision updates the scope boundary.
	Decision ir.ScopeDecision
	// ExtraIterations extends the red/green loop budget.
	ExtraIterations int
	// Discard drops the pending proposal and asks its collaborator again.
	Discard bool
	// Artifacts are corrected artifacts recorded before the entry point is
	// resolved again. Only an InconsistentArtifactState halt accepts them.
	Artifacts []ir.Artifact
}

// Start places a new session at its entry point and runs it. With a nil
// entry the resolver chooses from the session's artifacts.
//
// Start returns a *HaltError when the session halts. Recoverable suspensions
// are reported through the Outcome with a nil error.
func (q *Sequencer) Start(ctx context.Context, s *session.Session, entry *ir.EntryPoint) (Outcome, error) {
	q.logger.Info("session starting", "session", s.ID(), "objective", s.Objective())
	if entry == nil {
		if err := q.advance(s); err != nil {
			return outcomeOf(s), err
		}
	} else if err := s.Enter(*entry); err != nil {
		return outcomeOf(s), fmt.Errorf("enter %s: %w", entry, err)
	}
	return q.Run(ctx, s)
}

// Run drives a running session until it suspends, halts, completes or ctx
// ends. Each step is totally ordered; nothing runs concurrently.
func (q *Sequencer) Run(ctx context.Context, s *session.Session) (Outcome, error) {
	for s.Status() == ir.SessionRunning {
		if err := ctx.Err(); err != nil {
			return outcomeOf(s), err
		}
		if err := q.step(ctx, s); err != nil {
			return outcomeOf(s), err
		}
	}
	out := outcomeOf(s)
	if s.Status() == ir.SessionHalted {
		return out, haltErrorFrom(s.ID(), *out.Suspension)
	}
	return out, nil
}

// Resume continues a suspended or halted session from its saved cursor.
func (q *Sequencer) Resume(ctx context.Context, s *session.Session, in ResumeInput) (Outcome, error) {
	if len(in.Artifacts) > 0 {
		if sus := s.Suspension(); sus != nil && sus.Code != ir.CodeInconsistentArtifactState {
			return outcomeOf(s), fmt.Errorf("%w: session stopped with %s", ErrCorrectionRefused, sus.Code)
		}
		for _, a := range in.Artifacts {
			if !a.Kind.Valid() || a.Name == "" {
				return outcomeOf(s), fmt.Errorf("%w: %q is not a named artifact of a known kind", ErrCorrectionRefused, a.Ref())
			}
		}
	}
	prev, err := s.Resume(in.Token, in.Decision)
	if err != nil {
		return outcomeOf(s), err
	}
	q.logger.Info("session resumed",
		"session", s.ID(),
		"phase", s.Phase(),
		"code", prev.Code,
	)

	loop := s.Loop()
	loop.Budget += in.ExtraIterations
	switch prev.Code {
	case ir.CodeGateEscalation:
		if in.Discard {
			loop.Candidate = nil
			loop.Revisions++
			if prev.Gate != nil {
				loop.Feedback = prev.Gate.Details
			}
		}
	case ir.CodeInconsistentArtifactState:
		if err := s.SetLoop(loop); err != nil {
			return outcomeOf(s), err
		}
		corrected, err := s.Correct(in.Artifacts...)
		if err != nil {
			return outcomeOf(s), err
		}
		for _, a := range corrected {
			q.logger.Info("artifact corrected", "session", s.ID(), "artifact", a.Ref(), "status", a.Status)
		}
		if err := q.advance(s); err != nil {
			return outcomeOf(s), err
		}
		return q.Run(ctx, s)
	case ir.CodeAcceptanceTestStalled:
	default:
		loop.Revisions = 0
		if in.Discard {
			loop.Candidate = nil
		}
	}
	if err := s.SetLoop(loop); err != nil {
		return outcomeOf(s), err
	}
	return q.Run(ctx, s)
}

// Cancel ends a session between steps. In-flight proposals are dropped;
// commits and artifacts are kept.
func (q *Sequencer) Cancel(s *session.Session) (Outcome, error) {
	if err := s.Cancel(); err != nil {
		return outcomeOf(s), err
	}
	q.logger.Info("session cancelled", "session", s.ID(), "phase", s.Phase())
	return outcomeOf(s), nil
}

func (q *Sequencer) step(ctx context.Context, s *session.Session) error {
	switch s.Phase() {
	case ir.PhasePlanning:
		return q.planStep(ctx, s)
	case ir.PhaseTestWriting:
		return q.testWritingStep(ctx, s)
	case ir.PhaseDomainImplementation:
		return q.domainStep(ctx, s)
	case ir.PhaseIntegration:
		return q.adapterStep(ctx, s, integrationPhase)
	case ir.PhaseContract:
		return q.adapterStep(ctx, s, contractPhase)
	case ir.PhaseReview:
		return q.reviewStep(ctx, s)
	case ir.PhaseCommit:
		return q.commitStep(s)
	}
	return fmt.Errorf("unknown phase %s", s.Phase())
}

// advance re-resolves the entry point from the current artifacts and enters
// it. Contradictions halt the session.
func (q *Sequencer) advance(s *session.Session) error {
	ep, err := q.resolver.Resolve(s.Artifacts())
	if err != nil {
		if resolver.IsInconsistent(err) {
			return q.halt(s, ir.CodeInconsistentArtifactState, err.Error())
		}
		return err
	}
	if err := s.Enter(ep); err != nil {
		if errors.Is(err, session.ErrPhaseRegression) || session.IsPrerequisiteError(err) {
			return q.halt(s, ir.CodeInconsistentArtifactState, err.Error())
		}
		return err
	}
	q.logger.Info("phase entered",
		"session", s.ID(),
		"phase", ep.Phase,
		"sub_step", ep.SubStep,
		"rule", ep.Rule,
	)
	return nil
}

// suspend stops the session with a recoverable or fatal reason.
func (q *Sequencer) suspend(s *session.Session, sus ir.Suspension) error {
	out, err := s.Suspend(sus)
	if err != nil {
		return err
	}
	level := slog.LevelWarn
	if out.Code.Fatal() {
		level = slog.LevelError
	}
	q.logger.Log(context.Background(), level, "session stopped",
		"session", s.ID(),
		"phase", out.Phase,
		"code", out.Code,
		"message", out.Message,
	)
	return nil
}

func (q *Sequencer) halt(s *session.Session, code ir.ReasonCode, msg string) error {
	return q.suspend(s, ir.Suspension{Code: code, Message: msg, Iteration: s.Loop().Iteration})
}

// revise sends work back to its collaborator with feedback, or suspends with
// code once the revision budget is spent.
func (q *Sequencer) revise(s *session.Session, loop session.LoopState, code ir.ReasonCode, feedback ...string) error {
	loop.Revisions++
	loop.Feedback = feedback
	loop.Candidate = nil
	if err := s.SetLoop(loop); err != nil {
		return err
	}
	q.logger.Debug("revision requested",
		"session", s.ID(),
		"phase", s.Phase(),
		"revision", loop.Revisions,
		"feedback", feedback,
	)
	if loop.Revisions > q.maxRevisions {
		msg := fmt.Sprintf("revision budget of %d exhausted", q.maxRevisions)
		if len(feedback) > 0 {
			msg += ": " + feedback[0]
		}
		return q.suspend(s, ir.Suspension{Code: code, Message: msg, Iteration: loop.Iteration})
	}
	return nil
}

// invoke asks the agent for an artifact. On failure after retries the
// session is suspended and ok is false.
func (q *Sequencer) invoke(ctx context.Context, s *session.Session, capability Capability, req AgentRequest) (a ir.Artifact, ok bool, err error) {
	req.SessionID = s.ID()
	req.Capability = capability
	req.Objective = s.Objective()
	req.Scope = s.Scope()
	req.Phase = s.Phase()
	if req.Attempt == 0 {
		req.Attempt = 1
	}

	a, err = retry(ctx, q, string(capability), func() (ir.Artifact, error) {
		return q.agent.Invoke(ctx, capability, req)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ir.Artifact{}, false, ctx.Err()
		}
		return ir.Artifact{}, false, q.suspend(s, ir.Suspension{
			Code:      ir.CodeAgentInvocationFailure,
			Message:   fmt.Sprintf("%s: %v", capability, err),
			Iteration: s.Loop().Iteration,
		})
	}

	kinds := capability.Kinds()
	if a.Kind == "" && len(kinds) > 0 {
		a.Kind = kinds[0]
	}
	if !slices.Contains(kinds, a.Kind) {
		return ir.Artifact{}, false, q.suspend(s, ir.Suspension{
			Code:    ir.CodeAgentInvocationFailure,
			Message: fmt.Sprintf("%s returned a %s artifact, want one of %v", capability, a.Kind, kinds),
		})
	}
	if a.Name == "" {
		a.Name = fmt.Sprintf("%s-%d", capability, s.Seq()+1)
	}
	a.Seq = 0
	q.logger.Debug("artifact produced",
		"session", s.ID(),
		"capability", capability,
		"ref", a.Ref(),
	)
	return a, true, nil
}

// runTest runs a test through the TestRunner. On failure after retries the
// session is suspended and ok is false.
func (q *Sequencer) runTest(ctx context.Context, s *session.Session, test ir.Artifact) (out ir.TestOutcome, ok bool, err error) {
	out, err = retry(ctx, q, "run "+test.Ref(), func() (ir.TestOutcome, error) {
		return q.runner.Run(ctx, test)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", false, q.suspend(s, ir.Suspension{
			Code:      ir.CodeAgentInvocationFailure,
			Message:   fmt.Sprintf("run %s: %v", test.Ref(), err),
			Iteration: s.Loop().Iteration,
		})
	}
	q.logger.Debug("test run", "session", s.ID(), "ref", test.Ref(), "outcome", out)
	return out, true, nil
}

// author requests a new test of kind, classifies it and runs it. The test is
// recorded only when it runs Red; anything else is sent back for a rewrite.
func (q *Sequencer) author(ctx context.Context, s *session.Session, capability Capability) (ir.Artifact, bool, error) {
	loop := s.Loop()
	req := AgentRequest{Feedback: loop.Feedback, Attempt: loop.Revisions + 1}
	if story, ok := s.Artifacts().Latest(ir.KindUserStory); ok {
		req.Inputs = append(req.Inputs, story)
	}
	if acc, ok := s.Artifacts().Latest(ir.KindAcceptanceTest); ok && capability != CapAcceptanceTest {
		req.Inputs = append(req.Inputs, acc)
	}
	test, ok, err := q.invoke(ctx, s, capability, req)
	if !ok || err != nil {
		return ir.Artifact{}, false, err
	}

	if _, err := classify.Check(test); err != nil {
		if !classify.IsError(err) {
			return ir.Artifact{}, false, err
		}
		return ir.Artifact{}, false, q.revise(s, loop, ir.CodeAmbiguousClassification, err.Error())
	}

	out, ok, err := q.runTest(ctx, s, test)
	if !ok || err != nil {
		return ir.Artifact{}, false, err
	}
	switch out {
	case ir.OutcomeGreen:
		return ir.Artifact{}, false, q.revise(s, loop, ir.CodeUnexpectedTestOutcome,
			fmt.Sprintf("%s passes before any implementation; it does not fail", test.Ref()))
	case ir.OutcomeError:
		return ir.Artifact{}, false, q.revise(s, loop, ir.CodeUnexpectedTestOutcome,
			fmt.Sprintf("%s errors; it fails for the wrong reason", test.Ref()))
	}

	recorded, err := s.RecordArtifact(test)
	if err != nil {
		return ir.Artifact{}, false, err
	}
	if err := s.RecordTestOutcome(test.Kind, test.Name, ir.OutcomeRed); err != nil {
		return ir.Artifact{}, false, err
	}
	loop = s.Loop()
	loop.Target = test.Name
	loop.Revisions = 0
	loop.Feedback = nil
	if err := s.SetLoop(loop); err != nil {
		return ir.Artifact{}, false, err
	}
	return recorded, true, nil
}

// implement obtains an implementation for the loop target and gates it.
// When the gate lets it proceed the candidate is kept in the loop cursor and
// ok is true. Modify sends it back; Escalate suspends with the proposal.
func (q *Sequencer) implement(ctx context.Context, s *session.Session, capability Capability, testKind ir.ArtifactKind, kind ir.ChangeKind) (bool, error) {
	loop := s.Loop()
	if loop.Candidate == nil {
		req := AgentRequest{
			TargetTest: loop.Target,
			Feedback:   loop.Feedback,
			Attempt:    loop.Revisions + 1,
		}
		if t, ok := s.Artifact(testKind, loop.Target); ok {
			req.Inputs = append(req.Inputs, t)
		}
		if capability == CapRefactor {
			if r, ok := s.Artifacts().Latest(ir.KindReviewReport); ok {
				req.Inputs = append(req.Inputs, r)
			}
		}
		a, ok, err := q.invoke(ctx, s, capability, req)
		if !ok || err != nil {
			return false, err
		}
		if a.Change == nil {
			return false, q.suspend(s, ir.Suspension{
				Code:      ir.CodeAgentInvocationFailure,
				Message:   fmt.Sprintf("%s returned %s without a proposed change", capability, a.Ref()),
				Iteration: loop.Iteration,
			})
		}
		change := *a.Change
		if change.ID == "" {
			change.ID = fmt.Sprintf("%s@%d", a.Ref(), s.Seq()+1)
		}
		if change.TargetTest == "" {
			change.TargetTest = loop.Target
		}
		if change.Kind == "" {
			change.Kind = kind
		}
		a.Change = &change
		loop.Candidate = &a
	}

	change := *loop.Candidate.Change
	if change.Kind != kind {
		return false, q.revise(s, loop, ir.CodeGateViolation,
			fmt.Sprintf("%s must be a %s change, got %s", change.ID, kind, change.Kind))
	}

	res := q.gate.Evaluate(change, s)
	if _, err := s.RecordGate(res); err != nil {
		return false, err
	}
	if !slices.Contains(loop.Gated, change.ID) {
		loop.Gated = append(loop.Gated, change.ID)
	}
	q.logger.Info("gate evaluated",
		"session", s.ID(),
		"phase", s.Phase(),
		"change", change.ID,
		"verdict", res.Verdict,
		"reasons", res.Reasons,
	)

	switch res.Verdict {
	case ir.VerdictProceed:
		for _, id := range loop.Gated {
			s.ResolveGates(id)
		}
		loop.Gated = nil
		loop.Feedback = nil
		return true, s.SetLoop(loop)
	case ir.VerdictModify:
		return false, q.revise(s, loop, ir.CodeGateViolation, res.Details...)
	default:
		if err := s.SetLoop(loop); err != nil {
			return false, err
		}
		return false, q.suspend(s, ir.Suspension{
			Code:      ir.CodeGateEscalation,
			Message:   fmt.Sprintf("%s needs a scope decision: %v", change.ID, res.Reasons),
			Iteration: loop.Iteration,
			Gate:      &res,
			Proposal:  &change,
		})
	}
}

// verify runs the loop target after an approved implementation. Green records
// the candidate and the outcome; anything else sends the implementation back.
// recordFailure controls whether a failing run is recorded against the target.
func (q *Sequencer) verify(ctx context.Context, s *session.Session, testKind ir.ArtifactKind, recordFailure bool) (bool, error) {
	loop := s.Loop()
	test, ok := s.Artifact(testKind, loop.Target)
	if !ok {
		return false, q.halt(s, ir.CodeInconsistentArtifactState,
			fmt.Sprintf("target test %s/%s is not recorded", testKind, loop.Target))
	}
	out, ok, err := q.runTest(ctx, s, test)
	if !ok || err != nil {
		return false, err
	}
	if out != ir.OutcomeGreen {
		if recordFailure {
			if err := s.RecordTestOutcome(testKind, loop.Target, out); err != nil {
				return false, err
			}
		}
		return false, q.revise(s, s.Loop(), ir.CodeUnexpectedTestOutcome,
			fmt.Sprintf("%s is still %s after the implementation", test.Ref(), out))
	}

	if loop.Candidate != nil {
		c := *loop.Candidate
		c.Status = ir.StatusGreen
		impl, err := s.RecordArtifact(c)
		if err != nil {
			return false, err
		}
		loop.Changes = append(loop.Changes, impl.Ref())
		loop.Candidate = nil
	}
	if err := s.RecordTestOutcome(testKind, loop.Target, ir.OutcomeGreen); err != nil {
		return false, err
	}
	return true, s.SetLoop(loop)
}

// pinned builds commit changes for refs, each pinned to the version of the
// artifact currently recorded under it.
func pinned(s *session.Session, kind ir.ChangeKind, refs ...string) []ir.Change {
	changes := make([]ir.Change, 0, len(refs))
	for _, ref := range refs {
		c := ir.Change{Kind: kind, Ref: ref}
		if k, name, ok := ir.SplitRef(ref); ok {
			if a, found := s.Artifact(k, name); found {
				c.Seq = a.Seq
			}
		}
		changes = append(changes, c)
	}
	return changes
}

// commit submits a proposal to the commit policy. A rejection suspends the
// session with CommitRejected and ok is false.
func (q *Sequencer) commit(s *session.Session, p ir.CommitProposal) (bool, error) {
	id, err := q.policy.TryCommit(s, p)
	if err != nil {
		if policy.IsRejected(err) {
			return false, q.suspend(s, ir.Suspension{
				Code:      ir.CodeCommitRejected,
				Message:   err.Error(),
				Iteration: s.Loop().Iteration,
			})
		}
		return false, err
	}
	q.logger.Info("commit recorded",
		"session", s.ID(),
		"phase", s.Phase(),
		"commit", id,
		"kind", p.Kind,
	)
	return true, nil
}
