package session

import (
	"fmt"

	"github.com/roach88/pedro/internal/ir"
)

// TestEntry is the last known outcome of one tracked test.
type TestEntry struct {
	Kind    ir.ArtifactKind `json:"kind"`
	Name    string          `json:"name"`
	Outcome ir.TestOutcome  `json:"outcome,omitempty"`
}

// Ref returns "Kind/name".
func (e TestEntry) Ref() string {
	return string(e.Kind) + "/" + e.Name
}

// TrackerState is the serializable form of a TestStatusTracker.
type TrackerState struct {
	Acceptance          string      `json:"acceptance,omitempty"`
	AcceptanceRed       bool        `json:"acceptance_red"`
	AcceptanceEverGreen bool        `json:"acceptance_ever_green"`
	Evaluations         int         `json:"evaluations"`
	UnitTransitions     int         `json:"unit_transitions"`
	Tests               []TestEntry `json:"tests,omitempty"`
}

// TestStatusTracker records the pass/fail state of the acceptance test and
// of every other test in the current slice.
//
// The acceptance test is the outer target of the red/green loop. It only
// counts towards AllGreen once an evaluation has reported it Green; until
// then it is expected to be Red.
type TestStatusTracker struct {
	st TrackerState
}

// NewTestStatusTracker restores a tracker from its state.
func NewTestStatusTracker(st TrackerState) *TestStatusTracker {
	st.Tests = append([]TestEntry(nil), st.Tests...)
	return &TestStatusTracker{st: st}
}

// State returns a copy of the tracker state.
func (t *TestStatusTracker) State() TrackerState {
	st := t.st
	st.Tests = append([]TestEntry(nil), t.st.Tests...)
	return st
}

// Acceptance returns the name of the tracked acceptance test.
func (t *TestStatusTracker) Acceptance() string {
	return t.st.Acceptance
}

// AcceptanceRed reports whether the acceptance test is still Red.
// It is true from the moment an acceptance test is tracked until an
// evaluation reports Green.
func (t *TestStatusTracker) AcceptanceRed() bool {
	return t.st.AcceptanceRed
}

// Evaluations returns how many acceptance evaluations were recorded.
func (t *TestStatusTracker) Evaluations() int {
	return t.st.Evaluations
}

// UnitTransitionsSinceEvaluation returns the number of unit tests that turned
// Green since the last acceptance evaluation.
func (t *TestStatusTracker) UnitTransitionsSinceEvaluation() int {
	return t.st.UnitTransitions
}

// TrackAcceptance starts tracking a new acceptance test, which is Red until
// evaluated otherwise.
func (t *TestStatusTracker) TrackAcceptance(name string) {
	t.st.Acceptance = name
	t.st.AcceptanceRed = true
	t.st.AcceptanceEverGreen = false
	t.st.UnitTransitions = 0
}

// seedAcceptance tracks an acceptance test that already has a known status.
func (t *TestStatusTracker) seedAcceptance(name string, green bool) {
	t.TrackAcceptance(name)
	if green {
		t.st.AcceptanceRed = false
		t.st.AcceptanceEverGreen = true
	}
}

// RecordAcceptance applies an acceptance evaluation. Green is refused when no
// unit test transition happened since the previous evaluation.
func (t *TestStatusTracker) RecordAcceptance(outcome ir.TestOutcome) error {
	if t.st.Acceptance == "" {
		return fmt.Errorf("no acceptance test tracked")
	}
	if outcome == ir.OutcomeGreen && t.st.AcceptanceRed && t.st.UnitTransitions == 0 {
		return ErrAcceptanceByAssertion
	}
	t.st.Evaluations++
	t.st.UnitTransitions = 0
	t.st.AcceptanceRed = outcome != ir.OutcomeGreen
	if outcome == ir.OutcomeGreen {
		t.st.AcceptanceEverGreen = true
	}
	return nil
}

// Record stores the outcome of a non-acceptance test. An empty outcome
// registers the test as not yet run.
func (t *TestStatusTracker) Record(kind ir.ArtifactKind, name string, outcome ir.TestOutcome) {
	for i := range t.st.Tests {
		e := &t.st.Tests[i]
		if e.Kind == kind && e.Name == name {
			if kind == ir.KindUnitTest && e.Outcome != ir.OutcomeGreen && outcome == ir.OutcomeGreen {
				t.st.UnitTransitions++
			}
			e.Outcome = outcome
			return
		}
	}
	t.st.Tests = append(t.st.Tests, TestEntry{Kind: kind, Name: name, Outcome: outcome})
	if kind == ir.KindUnitTest && outcome == ir.OutcomeGreen {
		t.st.UnitTransitions++
	}
}

// RecordUnit stores the outcome of a unit test.
func (t *TestStatusTracker) RecordUnit(name string, outcome ir.TestOutcome) {
	t.Record(ir.KindUnitTest, name, outcome)
}

// Outcome returns the last outcome of a tracked test.
func (t *TestStatusTracker) Outcome(kind ir.ArtifactKind, name string) (ir.TestOutcome, bool) {
	for _, e := range t.st.Tests {
		if e.Kind == kind && e.Name == name {
			return e.Outcome, true
		}
	}
	return "", false
}

// Entries returns every tracked non-acceptance test in registration order.
func (t *TestStatusTracker) Entries() []TestEntry {
	return append([]TestEntry(nil), t.st.Tests...)
}

// AllGreen reports whether every tracked test is Green. The acceptance test
// counts once it has been Green at least once.
func (t *TestStatusTracker) AllGreen() bool {
	return t.Summary() == ir.SummaryAllGreen
}

// Summary aggregates the tracked outcomes.
func (t *TestStatusTracker) Summary() ir.TestSummary {
	unrun := false
	for _, e := range t.st.Tests {
		switch e.Outcome {
		case ir.OutcomeGreen:
		case "":
			unrun = true
		default:
			return ir.SummaryRed
		}
	}
	if t.st.AcceptanceEverGreen && t.st.AcceptanceRed {
		return ir.SummaryRed
	}
	if unrun {
		return ir.SummaryUnrun
	}
	return ir.SummaryAllGreen
}
