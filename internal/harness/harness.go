package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/pedro/internal/engine"
	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
	"github.com/roach88/pedro/internal/store"
	"github.com/roach88/pedro/internal/testutil"
)

// DefaultSessionID names scenario sessions that do not set one.
const DefaultSessionID = "scenario"

// errScripted is what a scripted collaborator failure returns. It is
// retryable, so a step with fail below the retry budget still succeeds.
var errScripted = errors.New("scripted collaborator failure")

// Harness is the test execution engine.
// It drives the real sequencer against scripted collaborators and persists
// the session to a fresh in-memory store.
type Harness struct {
	store  *store.Store
	agent  *testutil.ScriptedAgent
	runner *testutil.ScriptedRunner
	scorer *testutil.ScriptedScorer
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Create a fresh in-memory store
//  2. Script the collaborators and seed the session
//  3. Start the session and check where it stopped
//  4. Apply each resume step and check again
//  5. Save the session, read the trace back and evaluate assertions
//
// A non-nil error means the scenario could not be executed at all;
// expectation and assertion failures are reported through the Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		agent:  testutil.NewScriptedAgent(),
		runner: testutil.NewScriptedRunner(),
		scorer: testutil.NewScriptedScorer(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if err := h.script(scenario.Agent, scenario.Runner); err != nil {
		return nil, err
	}
	for _, sc := range scenario.Scorer {
		h.scorer.On(sc.Story, sc.Score, sc.SizeDays)
	}

	s, err := newSession(scenario.Session)
	if err != nil {
		return nil, err
	}
	q := h.sequencer(scenario.Session)

	ctx := context.Background()
	result := NewResult()

	entry, err := entryPoint(scenario.Session)
	if err != nil {
		return nil, err
	}
	out, runErr := q.Start(ctx, s, entry)
	h.check("expect", scenario.Expect, out, runErr, result)

	for i, step := range scenario.Resume {
		if err := h.script(step.Agent, nil); err != nil {
			return nil, fmt.Errorf("resume[%d]: %w", i, err)
		}
		for _, r := range step.Runner {
			if len(r.Outcomes) > 0 {
				h.runner.Set(r.Test, outcomes(r.Outcomes)...)
			}
			if r.Fail > 0 {
				h.runner.Fail(r.Test, r.Fail)
			}
		}
		in := engine.ResumeInput{
			Decision: ir.ScopeDecision{
				Include: step.Include,
				Exclude: step.Exclude,
				Note:    step.Decision,
			},
			ExtraIterations: step.Iterations,
			Discard:         step.Discard,
		}
		if sus := s.Suspension(); sus != nil {
			in.Token = sus.Token
		}
		out, runErr = q.Resume(ctx, s, in)
		h.check(fmt.Sprintf("resume[%d].expect", i), step.Expect, out, runErr, result)
	}

	if err := h.collect(ctx, s, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// script queues agent replies and runner outcomes.
func (h *Harness) script(agent []AgentStep, runner []RunnerStep) error {
	for i, step := range agent {
		c := engine.Capability(step.Capability)
		if step.Fail > 0 {
			h.agent.Fail(c, step.Fail, errScripted)
		}
		for j, spec := range step.Artifacts {
			a, err := spec.Artifact()
			if err != nil {
				return fmt.Errorf("agent[%d].artifacts[%d]: %w", i, j, err)
			}
			h.agent.On(c, a)
		}
	}
	for _, step := range runner {
		h.runner.On(step.Test, outcomes(step.Outcomes)...)
		if step.Fail > 0 {
			h.runner.Fail(step.Test, step.Fail)
		}
	}
	return nil
}

func (h *Harness) sequencer(spec SessionSpec) *engine.Sequencer {
	opts := []engine.Option{
		engine.WithLogger(h.logger),
		engine.WithRetry(engine.DefaultRetryMaxTries, func() backoff.BackOff {
			return &backoff.ZeroBackOff{}
		}),
	}
	if spec.MaxTDDIterations > 0 {
		opts = append(opts, engine.WithMaxIterations(spec.MaxTDDIterations))
	}
	if spec.MaxRevisions > 0 {
		opts = append(opts, engine.WithMaxRevisions(spec.MaxRevisions))
	}
	return engine.New(h.agent, h.scorer, h.runner, opts...)
}

// check compares where a run stopped against its expectation.
func (h *Harness) check(field string, want Expectation, out engine.Outcome, runErr error, result *Result) {
	stop := Stop{
		Status:  out.Status,
		Phase:   out.Phase,
		SubStep: out.SubStep,
		Commits: out.Commits,
	}
	if out.Suspension != nil {
		stop.Code = out.Suspension.Code
	}
	if runErr != nil {
		stop.Err = runErr.Error()
	}
	result.Stops = append(result.Stops, stop)

	switch {
	case runErr != nil && want.Error != "":
		if !strings.Contains(runErr.Error(), want.Error) {
			result.AddError(fmt.Sprintf("%s.error: expected error containing %q, got %q", field, want.Error, runErr.Error()))
		}
	case want.Error != "":
		result.AddError(fmt.Sprintf("%s.error: expected error containing %q, got none", field, want.Error))
	case runErr != nil && !engine.IsHalt(runErr):
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", field, runErr))
	}

	if string(out.Status) != want.Status {
		result.AddError(fmt.Sprintf("%s.status: expected %s, got %s", field, want.Status, out.Status))
	}
	if want.Phase != "" {
		if p, err := ir.ParsePhase(want.Phase); err == nil && p != out.Phase {
			result.AddError(fmt.Sprintf("%s.phase: expected %s, got %s", field, p, out.Phase))
		}
	}
	if want.SubStep != "" && ir.SubStep(want.SubStep) != out.SubStep {
		result.AddError(fmt.Sprintf("%s.sub_step: expected %s, got %q", field, want.SubStep, out.SubStep))
	}
	if want.Code != "" && ir.ReasonCode(want.Code) != stop.Code {
		result.AddError(fmt.Sprintf("%s.code: expected %s, got %q", field, want.Code, stop.Code))
	}
	if want.Commits != nil && *want.Commits != out.Commits {
		result.AddError(fmt.Sprintf("%s.commits: expected %d, got %d", field, *want.Commits, out.Commits))
	}
	h.logger.Debug("run stopped", "field", field, "status", out.Status, "phase", out.Phase)
}

// collect saves the session and reads the trace back from the store, so
// assertions see what a later process would see.
func (h *Harness) collect(ctx context.Context, s *session.Session, result *Result) error {
	if err := h.store.Save(ctx, s.State()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	events, err := h.store.Events(ctx, s.ID())
	if err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	for _, e := range events {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:   e.Seq,
			Type:  e.Type,
			Phase: e.Phase.String(),
			Attrs: e.Attrs,
		})
	}
	commits, err := h.store.Commits(ctx, s.ID())
	if err != nil {
		return fmt.Errorf("failed to read commits: %w", err)
	}
	result.Commits = append(result.Commits, commits...)
	tests := s.Tests()
	for _, t := range tests.Entries() {
		result.Tests[t.Ref()] = t.Outcome
	}
	if name := tests.Acceptance(); name != "" {
		outcome := ir.OutcomeGreen
		if tests.AcceptanceRed() {
			outcome = ir.OutcomeRed
		}
		result.Tests[string(ir.KindAcceptanceTest)+"/"+name] = outcome
	}
	return nil
}

func newSession(spec SessionSpec) (*session.Session, error) {
	id := spec.ID
	if id == "" {
		id = DefaultSessionID
	}
	seeds := make([]ir.Artifact, 0, len(spec.Artifacts))
	for i, a := range spec.Artifacts {
		art, err := a.Artifact()
		if err != nil {
			return nil, fmt.Errorf("session.artifacts[%d]: %w", i, err)
		}
		seeds = append(seeds, art)
	}
	scope := ir.ScopeBoundary{Include: spec.Include, Exclude: spec.Exclude}
	s, err := session.New(id, spec.Objective, scope, seeds...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// entryPoint returns the explicit entry point, or nil to let the resolver
// choose.
func entryPoint(spec SessionSpec) (*ir.EntryPoint, error) {
	if spec.Entry == "" {
		return nil, nil
	}
	p, err := ir.ParsePhase(spec.Entry)
	if err != nil {
		return nil, fmt.Errorf("session.entry: %w", err)
	}
	return &ir.EntryPoint{Phase: p, SubStep: ir.SubStep(spec.SubStep), Rule: "explicit"}, nil
}

// outcomes converts validated outcome names.
func outcomes(names []string) []ir.TestOutcome {
	out := make([]ir.TestOutcome, 0, len(names))
	for _, n := range names {
		o, err := ir.ParseTestOutcome(n)
		if err != nil {
			continue
		}
		out = append(out, o)
	}
	return out
}
