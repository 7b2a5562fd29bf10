package session

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/pedro/internal/ir"
)

// LoopState is the cursor of an in-flight phase loop. It is persisted with
// the session so a suspended loop resumes at the exact step it left.
//
// Candidate is the implementation proposal in flight; it is only recorded
// as an artifact once its target test passes. Gated lists the change ids
// gated for the current target and Changes the refs to commit with it.
type LoopState struct {
	Iteration int          `json:"iteration"`
	Budget    int          `json:"budget,omitempty"`
	Stage     string       `json:"stage,omitempty"`
	Target    string       `json:"target,omitempty"`
	Candidate *ir.Artifact `json:"candidate,omitempty"`
	Revisions int          `json:"revisions,omitempty"`
	Feedback  []string     `json:"feedback,omitempty"`
	Gated     []string     `json:"gated,omitempty"`
	Changes   []string     `json:"changes,omitempty"`
}

// State is the serializable form of a Session.
type State struct {
	Version    string           `json:"version"`
	ID         string           `json:"id"`
	Objective  string           `json:"objective"`
	Scope      ir.ScopeBoundary `json:"scope"`
	Phase      ir.Phase         `json:"phase"`
	SubStep    ir.SubStep       `json:"sub_step,omitempty"`
	Status     ir.SessionStatus `json:"status"`
	Artifacts  []ir.Artifact    `json:"artifacts,omitempty"`
	Tests      TrackerState     `json:"tests"`
	Commits    []ir.Commit      `json:"commits,omitempty"`
	Gates      []ir.GateRecord  `json:"gates,omitempty"`
	Suspension *ir.Suspension   `json:"suspension,omitempty"`
	Loop       LoopState        `json:"loop"`
	Seq        int64            `json:"seq"`
	Events     []ir.Event       `json:"events,omitempty"`
}

// Session is the aggregate root of one feature-delivery run.
type Session struct {
	id         string
	objective  string
	scope      ir.ScopeBoundary
	phase      ir.Phase
	subStep    ir.SubStep
	status     ir.SessionStatus
	artifacts  *ArtifactStore
	tests      *TestStatusTracker
	commits    []ir.Commit
	gates      []ir.GateRecord
	suspension *ir.Suspension
	loop       LoopState
	seq        int64
	events     []ir.Event
}

// New creates a running session in the Planning phase seeded with an initial
// artifact set. Seeded test artifacts initialise the test tracker from their
// recorded status.
func New(id, objective string, scope ir.ScopeBoundary, seed ...ir.Artifact) (*Session, error) {
	if id == "" {
		return nil, errors.New("session id is required")
	}
	if strings.TrimSpace(objective) == "" {
		return nil, errors.New("objective is required")
	}
	for _, a := range seed {
		if err := validSeed(a); err != nil {
			return nil, err
		}
	}

	s := &Session{
		id:        id,
		objective: objective,
		scope:     scope,
		phase:     ir.PhasePlanning,
		status:    ir.SessionRunning,
		artifacts: NewArtifactStore(),
		tests:     NewTestStatusTracker(TrackerState{}),
	}
	s.Emit(ir.EventSessionStarted, map[string]string{
		"objective": objective,
		"seeded":    strconv.Itoa(len(seed)),
	})
	for _, a := range seed {
		s.seed(a)
	}
	// Seeded unit results predate the session and do not count as transitions.
	s.tests.st.UnitTransitions = 0
	return s, nil
}

func validSeed(a ir.Artifact) error {
	if !a.Kind.Valid() {
		return fmt.Errorf("seed artifact %q: unknown kind %q", a.Name, a.Kind)
	}
	if a.Name == "" {
		return fmt.Errorf("seed artifact of kind %s has no name", a.Kind)
	}
	return nil
}

// seed records a as supplied by the caller. Test artifacts take their
// tracked outcome from the status they carry.
func (s *Session) seed(a ir.Artifact) ir.Artifact {
	if a.Status == "" {
		a.Status = ir.StatusPending
	}
	a.Seq = s.Emit(ir.EventArtifactRecorded, artifactAttrs(a)).Seq
	s.artifacts.Record(a)
	switch {
	case a.Kind == ir.KindAcceptanceTest:
		s.tests.seedAcceptance(a.Name, a.Status == ir.StatusGreen)
	case a.Kind.IsTest():
		s.tests.Record(a.Kind, a.Name, outcomeOf(a.Status))
	}
	return a
}

// Correct records caller-supplied artifacts the way seeds are recorded, to
// repair an inconsistent artifact set. Like seeds, corrected unit results
// do not count as transitions.
func (s *Session) Correct(artifacts ...ir.Artifact) ([]ir.Artifact, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		if err := validSeed(a); err != nil {
			return nil, err
		}
	}
	transitions := s.tests.st.UnitTransitions
	out := make([]ir.Artifact, len(artifacts))
	for i, a := range artifacts {
		out[i] = s.seed(a)
	}
	s.tests.st.UnitTransitions = transitions
	return out, nil
}

// Restore rebuilds a session from persisted state.
func Restore(st State) (*Session, error) {
	if st.Version != ir.StateVersion {
		return nil, fmt.Errorf("unsupported session state version %q (want %q)", st.Version, ir.StateVersion)
	}
	if st.ID == "" {
		return nil, errors.New("session state has no id")
	}
	if !st.Phase.Valid() {
		return nil, fmt.Errorf("session state has invalid phase %d", int(st.Phase))
	}
	s := &Session{
		id:         st.ID,
		objective:  st.Objective,
		scope:      st.Scope,
		phase:      st.Phase,
		subStep:    st.SubStep,
		status:     st.Status,
		artifacts:  NewArtifactStore(st.Artifacts...),
		tests:      NewTestStatusTracker(st.Tests),
		commits:    slices.Clone(st.Commits),
		gates:      slices.Clone(st.Gates),
		suspension: cloneSuspension(st.Suspension),
		loop:       cloneLoop(st.Loop),
		seq:        st.Seq,
		events:     slices.Clone(st.Events),
	}
	return s, nil
}

// State returns a serializable copy of the session.
func (s *Session) State() State {
	return State{
		Version:    ir.StateVersion,
		ID:         s.id,
		Objective:  s.objective,
		Scope:      s.scope,
		Phase:      s.phase,
		SubStep:    s.subStep,
		Status:     s.status,
		Artifacts:  s.artifacts.History(),
		Tests:      s.tests.State(),
		Commits:    slices.Clone(s.commits),
		Gates:      slices.Clone(s.gates),
		Suspension: cloneSuspension(s.suspension),
		Loop:       cloneLoop(s.loop),
		Seq:        s.seq,
		Events:     slices.Clone(s.events),
	}
}

func (s *Session) ID() string                  { return s.id }
func (s *Session) Objective() string           { return s.objective }
func (s *Session) Scope() ir.ScopeBoundary     { return s.scope }
func (s *Session) Phase() ir.Phase             { return s.phase }
func (s *Session) SubStep() ir.SubStep         { return s.subStep }
func (s *Session) Status() ir.SessionStatus    { return s.status }
func (s *Session) Seq() int64                  { return s.seq }
func (s *Session) Commits() []ir.Commit        { return slices.Clone(s.commits) }
func (s *Session) Gates() []ir.GateRecord      { return slices.Clone(s.gates) }
func (s *Session) Events() []ir.Event          { return slices.Clone(s.events) }
func (s *Session) Loop() LoopState             { return cloneLoop(s.loop) }
func (s *Session) Artifacts() ArtifactSnapshot { return s.artifacts.Snapshot() }

// EntryPoint returns the current phase and sub-step.
func (s *Session) EntryPoint() ir.EntryPoint {
	return ir.EntryPoint{Phase: s.phase, SubStep: s.subStep}
}

// Artifact returns the latest version of the named artifact.
func (s *Session) Artifact(kind ir.ArtifactKind, name string) (ir.Artifact, bool) {
	return s.artifacts.Get(kind, name)
}

// ArtifactHistory returns every recorded artifact version.
func (s *Session) ArtifactHistory() []ir.Artifact {
	return s.artifacts.History()
}

// Tests returns a copy of the test tracker. Mutating the copy does not
// affect the session.
func (s *Session) Tests() *TestStatusTracker {
	return NewTestStatusTracker(s.tests.State())
}

// Suspension returns the current suspension, or nil when the session is not
// suspended or halted.
func (s *Session) Suspension() *ir.Suspension {
	return cloneSuspension(s.suspension)
}

// Emit appends an event to the session trace and advances the logical clock.
func (s *Session) Emit(typ string, attrs map[string]string) ir.Event {
	if len(attrs) == 0 {
		attrs = nil
	}
	s.seq++
	ev := ir.Event{Seq: s.seq, Type: typ, Phase: s.phase, Attrs: attrs}
	s.events = append(s.events, ev)
	return ev
}

func (s *Session) writable() error {
	if s.status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, s.status)
	}
	return nil
}

// SetLoop replaces the loop cursor.
func (s *Session) SetLoop(l LoopState) error {
	if err := s.writable(); err != nil {
		return err
	}
	s.loop = cloneLoop(l)
	return nil
}

// RecordArtifact appends an artifact version produced by a collaborator.
// A newly recorded test starts out unrun; a new acceptance test is Red until
// evaluated.
func (s *Session) RecordArtifact(a ir.Artifact) (ir.Artifact, error) {
	if err := s.writable(); err != nil {
		return ir.Artifact{}, err
	}
	if !a.Kind.Valid() {
		return ir.Artifact{}, fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
	if a.Name == "" {
		return ir.Artifact{}, fmt.Errorf("artifact of kind %s has no name", a.Kind)
	}
	if a.Status == "" {
		a.Status = ir.StatusPending
	}
	a.Seq = s.Emit(ir.EventArtifactRecorded, artifactAttrs(a)).Seq
	s.artifacts.Record(a)
	switch {
	case a.Kind == ir.KindAcceptanceTest:
		s.tests.TrackAcceptance(a.Name)
	case a.Kind.IsTest():
		s.tests.Record(a.Kind, a.Name, "")
	}
	return a, nil
}

// SetArtifactStatus records a new status for an existing non-test artifact.
// Test status is only changed through RecordTestOutcome.
func (s *Session) SetArtifactStatus(kind ir.ArtifactKind, name string, status ir.ArtifactStatus) (ir.Artifact, error) {
	if err := s.writable(); err != nil {
		return ir.Artifact{}, err
	}
	if kind.IsTest() {
		return ir.Artifact{}, fmt.Errorf("status of test %s/%s is derived from test runs", kind, name)
	}
	if _, ok := s.artifacts.Get(kind, name); !ok {
		return ir.Artifact{}, fmt.Errorf("%w: %s/%s", ErrUnknownArtifact, kind, name)
	}
	seq := s.Emit(ir.EventArtifactRecorded, map[string]string{
		"ref":    string(kind) + "/" + name,
		"status": string(status),
	}).Seq
	return s.artifacts.SetStatus(kind, name, status, seq)
}

// RecordTestOutcome applies a TestRunner result. For the acceptance test it
// fails with ErrAcceptanceByAssertion when Green is reported without a unit
// test transition since the previous evaluation; nothing is recorded then.
func (s *Session) RecordTestOutcome(kind ir.ArtifactKind, name string, outcome ir.TestOutcome) error {
	if err := s.writable(); err != nil {
		return err
	}
	if !kind.IsTest() {
		return fmt.Errorf("%s is not a test kind", kind)
	}
	if _, ok := s.artifacts.Get(kind, name); !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownArtifact, kind, name)
	}
	if kind == ir.KindAcceptanceTest {
		if name != s.tests.Acceptance() {
			return fmt.Errorf("acceptance test %q is not the tracked acceptance test %q", name, s.tests.Acceptance())
		}
		if err := s.tests.RecordAcceptance(outcome); err != nil {
			return err
		}
	} else {
		s.tests.Record(kind, name, outcome)
	}
	seq := s.Emit(ir.EventTestRun, map[string]string{
		"ref":     string(kind) + "/" + name,
		"outcome": string(outcome),
	}).Seq
	status := ir.StatusRed
	if outcome == ir.OutcomeGreen {
		status = ir.StatusGreen
	}
	_, err := s.artifacts.SetStatus(kind, name, status, seq)
	return err
}

// Enter moves the session to ep. The phase may stay or move forward but
// never backwards, and each phase requires its prerequisite artifacts.
func (s *Session) Enter(ep ir.EntryPoint) error {
	if err := s.writable(); err != nil {
		return err
	}
	if !ep.Phase.Valid() {
		return fmt.Errorf("invalid phase %d", int(ep.Phase))
	}
	if ep.Phase < s.phase {
		return fmt.Errorf("%w: %s -> %s", ErrPhaseRegression, s.phase, ep.Phase)
	}
	if ep.Phase != ir.PhasePlanning && ep.SubStep != ir.SubStepNone {
		return fmt.Errorf("sub-step %q is only valid in %s", ep.SubStep, ir.PhasePlanning)
	}
	if err := s.prerequisite(ep.Phase); err != nil {
		return err
	}
	if ep.Phase == s.phase && ep.SubStep == s.subStep {
		return nil
	}
	if ep.Phase != s.phase {
		s.loop = LoopState{}
	}
	s.phase = ep.Phase
	s.subStep = ep.SubStep
	attrs := map[string]string{}
	if ep.SubStep != ir.SubStepNone {
		attrs["sub_step"] = string(ep.SubStep)
	}
	if ep.Rule != "" {
		attrs["rule"] = ep.Rule
	}
	s.Emit(ir.EventPhaseEntered, attrs)
	return nil
}

// Advance moves to the phase after the current one.
func (s *Session) Advance() error {
	next, ok := s.phase.Next()
	if !ok {
		return fmt.Errorf("%s is the last phase", s.phase)
	}
	return s.Enter(ir.EntryPoint{Phase: next})
}

func (s *Session) prerequisite(p ir.Phase) error {
	green := func(kind ir.ArtifactKind) bool {
		a, ok := s.artifacts.Latest(kind)
		return ok && a.Status == ir.StatusGreen
	}
	switch p {
	case ir.PhaseTestWriting:
		if !s.artifacts.Has(ir.KindArchitecturePlan) {
			return &PrerequisiteError{Phase: p, Missing: "no ArchitecturePlan"}
		}
	case ir.PhaseDomainImplementation:
		if !s.artifacts.Has(ir.KindAcceptanceTest) {
			return &PrerequisiteError{Phase: p, Missing: "no AcceptanceTest"}
		}
	case ir.PhaseIntegration:
		if !s.artifacts.Has(ir.KindAcceptanceTest) || s.tests.AcceptanceRed() {
			return &PrerequisiteError{Phase: p, Missing: "AcceptanceTest is not Green"}
		}
	case ir.PhaseContract:
		if !green(ir.KindIntegrationTest) {
			return &PrerequisiteError{Phase: p, Missing: "IntegrationTest is not Green"}
		}
	case ir.PhaseReview:
		if !green(ir.KindContractTest) {
			return &PrerequisiteError{Phase: p, Missing: "ContractTest is not Green"}
		}
	case ir.PhaseCommit:
		if s.tests.AcceptanceRed() {
			return &PrerequisiteError{Phase: p, Missing: "AcceptanceTest is Red"}
		}
		r, ok := s.artifacts.Latest(ir.KindReviewReport)
		if !ok || r.Status != ir.StatusApproved {
			return &PrerequisiteError{Phase: p, Missing: "no approved ReviewReport"}
		}
	}
	return nil
}

// RecordGate appends a gate result to the gate log.
func (s *Session) RecordGate(r ir.GateResult) (ir.GateRecord, error) {
	if err := s.writable(); err != nil {
		return ir.GateRecord{}, err
	}
	attrs := map[string]string{
		"change_id": r.ChangeID,
		"verdict":   string(r.Verdict),
	}
	if len(r.Reasons) > 0 {
		reasons := make([]string, len(r.Reasons))
		for i, reason := range r.Reasons {
			reasons[i] = string(reason)
		}
		attrs["reasons"] = strings.Join(reasons, ",")
	}
	rec := ir.GateRecord{
		Seq:    s.Emit(ir.EventGateEvaluated, attrs).Seq,
		Phase:  s.phase,
		Result: r,
	}
	s.gates = append(s.gates, rec)
	return rec, nil
}

// ResolveGates marks every outstanding gate record of a change as resolved
// and returns how many were resolved.
func (s *Session) ResolveGates(changeID string) int {
	n := 0
	for i := range s.gates {
		if s.gates[i].Result.ChangeID == changeID && s.gates[i].Outstanding() {
			s.gates[i].Resolved = true
			n++
		}
	}
	return n
}

// OutstandingGates returns the gate records that still block commits.
func (s *Session) OutstandingGates() []ir.GateRecord {
	var out []ir.GateRecord
	for _, g := range s.gates {
		if g.Outstanding() {
			out = append(out, g)
		}
	}
	return out
}

// AppendCommit stamps and appends a commit. Callers go through the commit
// policy; AppendCommit itself performs no checks beyond writability.
func (s *Session) AppendCommit(c ir.Commit) (ir.Commit, error) {
	if err := s.writable(); err != nil {
		return ir.Commit{}, err
	}
	c.Phase = s.phase
	c.Seq = s.Emit(ir.EventCommitRecorded, map[string]string{
		"id":          c.ID,
		"change_kind": string(c.ChangeKind),
		"message":     c.Message,
	}).Seq
	s.commits = append(s.commits, c)
	return c, nil
}

// CommitByID looks up a recorded commit.
func (s *Session) CommitByID(id string) (ir.Commit, bool) {
	for _, c := range s.commits {
		if c.ID == id {
			return c, true
		}
	}
	return ir.Commit{}, false
}

// Suspend stops the session at the current step. Fatal reason codes halt the
// session; every other code suspends it. The returned suspension carries the
// resume token.
func (s *Session) Suspend(sus ir.Suspension) (ir.Suspension, error) {
	if err := s.writable(); err != nil {
		return ir.Suspension{}, err
	}
	if sus.Code == "" {
		return ir.Suspension{}, errors.New("suspension requires a reason code")
	}
	sus.Phase = s.phase
	sus.SubStep = s.subStep
	sus.Seq = s.seq + 1
	token, err := ir.SuspensionToken(s.id, sus)
	if err != nil {
		return ir.Suspension{}, err
	}
	sus.Token = token

	typ := ir.EventSessionSuspended
	s.status = ir.SessionSuspended
	if sus.Code.Fatal() {
		typ = ir.EventSessionHalted
		s.status = ir.SessionHalted
	}
	attrs := map[string]string{
		"code":    string(sus.Code),
		"message": sus.Message,
		"token":   token,
	}
	if sus.Iteration > 0 {
		attrs["iteration"] = strconv.Itoa(sus.Iteration)
	}
	s.Emit(typ, attrs)
	s.suspension = cloneSuspension(&sus)
	return sus, nil
}

// Halt stops the session with a fatal reason code.
func (s *Session) Halt(code ir.ReasonCode, message string) (ir.Suspension, error) {
	if !code.Fatal() {
		return ir.Suspension{}, fmt.Errorf("%s is not a fatal reason code", code)
	}
	return s.Suspend(ir.Suspension{Code: code, Message: message})
}

// Resume returns a suspended or halted session to running, applying the
// caller's scope decision. An empty token skips the token check. The
// suspension that was cleared is returned so the caller can continue from it.
func (s *Session) Resume(token string, decision ir.ScopeDecision) (ir.Suspension, error) {
	if s.status != ir.SessionSuspended && s.status != ir.SessionHalted {
		return ir.Suspension{}, fmt.Errorf("%w: status %s", ErrNotSuspended, s.status)
	}
	prev := *s.suspension
	if token != "" && token != prev.Token {
		return ir.Suspension{}, ErrTokenMismatch
	}
	s.scope = s.scope.Apply(decision)
	s.status = ir.SessionRunning
	s.suspension = nil
	attrs := map[string]string{"code": string(prev.Code)}
	if len(decision.Include) > 0 {
		attrs["include"] = strings.Join(decision.Include, ",")
	}
	if len(decision.Exclude) > 0 {
		attrs["exclude"] = strings.Join(decision.Exclude, ",")
	}
	if decision.Note != "" {
		attrs["note"] = decision.Note
	}
	s.Emit(ir.EventSessionResumed, attrs)
	return prev, nil
}

// Cancel ends the session. The in-flight proposal is discarded; recorded
// commits and artifacts are kept.
func (s *Session) Cancel() error {
	if err := s.writable(); err != nil {
		return err
	}
	attrs := map[string]string{}
	if c := s.loop.Candidate; c != nil {
		attrs["discarded"] = c.Ref()
	}
	s.loop = LoopState{}
	s.suspension = nil
	s.status = ir.SessionCancelled
	s.Emit(ir.EventSessionCancelled, attrs)
	return nil
}

// Complete marks a session in the Commit phase as finished.
func (s *Session) Complete() error {
	if err := s.writable(); err != nil {
		return err
	}
	if s.phase != ir.PhaseCommit {
		return fmt.Errorf("cannot complete session in %s", s.phase)
	}
	if s.tests.AcceptanceRed() {
		return errors.New("cannot complete session while acceptance test is Red")
	}
	if n := len(s.OutstandingGates()); n > 0 {
		return fmt.Errorf("cannot complete session with %d outstanding gate results", n)
	}
	s.status = ir.SessionCompleted
	s.Emit(ir.EventSessionCompleted, map[string]string{
		"commits": strconv.Itoa(len(s.commits)),
	})
	return nil
}

func artifactAttrs(a ir.Artifact) map[string]string {
	attrs := map[string]string{
		"ref":    a.Ref(),
		"status": string(a.Status),
	}
	if a.QualityScore != nil {
		attrs["quality_score"] = strconv.FormatInt(*a.QualityScore, 10)
	}
	if a.SizeDays != nil {
		attrs["size_days"] = strconv.FormatInt(*a.SizeDays, 10)
	}
	return attrs
}

func outcomeOf(status ir.ArtifactStatus) ir.TestOutcome {
	switch status {
	case ir.StatusGreen, ir.StatusApproved:
		return ir.OutcomeGreen
	case ir.StatusRed:
		return ir.OutcomeRed
	}
	return ""
}

func cloneSuspension(s *ir.Suspension) *ir.Suspension {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneLoop(l LoopState) LoopState {
	l.Feedback = slices.Clone(l.Feedback)
	l.Gated = slices.Clone(l.Gated)
	l.Changes = slices.Clone(l.Changes)
	if l.Candidate != nil {
		c := *l.Candidate
		l.Candidate = &c
	}
	return l
}
