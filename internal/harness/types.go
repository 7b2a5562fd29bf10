package harness

import (
	"fmt"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/testutil"
)

// TraceEvent is one event of the persisted session trace.
type TraceEvent struct {
	Seq   int64             `json:"seq"`
	Type  string            `json:"type"`
	Phase string            `json:"phase"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Stop records where one run of the sequencer stopped.
type Stop struct {
	Status  ir.SessionStatus `json:"status"`
	Phase   ir.Phase         `json:"phase"`
	SubStep ir.SubStep       `json:"sub_step,omitempty"`
	Code    ir.ReasonCode    `json:"code,omitempty"`
	Commits int              `json:"commits"`
	Err     string           `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Stops has one entry for the first run and one per resume step.
	Stops []Stop `json:"stops"`

	// Trace contains the persisted events in order.
	Trace []TraceEvent `json:"trace"`

	// Commits contains the persisted commits in order.
	Commits []ir.Commit `json:"commits"`

	// Tests holds the final outcome of every test by ref.
	Tests map[string]ir.TestOutcome `json:"tests"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Commits: []ir.Commit{},
		Tests:   make(map[string]ir.TestOutcome),
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Artifact builds the ir.Artifact described by a scenario entry.
func (a ArtifactSpec) Artifact() (ir.Artifact, error) {
	kind := ir.ArtifactKind(a.Kind)
	if !kind.Valid() {
		return ir.Artifact{}, fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
	if a.Name == "" {
		return ir.Artifact{}, fmt.Errorf("artifact of kind %s has no name", a.Kind)
	}

	var art ir.Artifact
	switch a.Template {
	case "":
		art = ir.Artifact{Kind: kind, Name: a.Name}
	case "test":
		if !kind.IsTest() {
			return ir.Artifact{}, fmt.Errorf("template test needs a test kind, got %s", kind)
		}
		art = testutil.Test(kind, a.Name)
	case "impl":
		if a.Target == "" {
			return ir.Artifact{}, fmt.Errorf("template impl needs a target")
		}
		art = testutil.Impl(kind, a.Name, a.Target)
	case "refactoring":
		art = testutil.Refactoring(kind, a.Name)
	default:
		return ir.Artifact{}, fmt.Errorf("unknown template %q", a.Template)
	}

	if a.Status != "" {
		st, err := ir.ParseArtifactStatus(a.Status)
		if err != nil {
			return ir.Artifact{}, err
		}
		art.Status = st
	}
	if a.QualityScore != nil {
		art.QualityScore = ir.Int64(*a.QualityScore)
	}
	if a.SizeDays != nil {
		art.SizeDays = ir.Int64(*a.SizeDays)
	}
	if a.Content != "" {
		art.Content = a.Content
	}
	if p := a.Profile; p != nil {
		prof := &ir.TestProfile{Scope: ir.TestScope(p.Scope), RealBoundaries: p.RealBoundaries}
		for _, d := range p.Doubles {
			prof.Doubles = append(prof.Doubles, ir.DoubleTarget(d))
		}
		for _, d := range p.Adapters {
			prof.Adapters = append(prof.Adapters, ir.DoubleTarget(d))
		}
		art.Profile = prof
	}
	if c := a.Change; c != nil {
		if art.Change == nil {
			art.Change = &ir.ProposedChange{}
		}
		applyChange(art.Change, c)
	}
	return art, nil
}

func applyChange(dst *ir.ProposedChange, c *ChangeSpec) {
	if c.Summary != "" {
		dst.Summary = c.Summary
	}
	if c.Kind != "" {
		dst.Kind = ir.ChangeKind(c.Kind)
	}
	if len(c.TracesTo) > 0 {
		dst.TracesTo = c.TracesTo
	}
	if c.TargetTest != "" {
		dst.TargetTest = c.TargetTest
	}
	if c.SimplerAlternative != "" {
		dst.SimplerAlternative = c.SimplerAlternative
	}
	for _, add := range c.Additions {
		dst.Additions = append(dst.Additions, ir.Addition{
			Name:        add.Name,
			Category:    ir.AdditionCategory(add.Category),
			ExercisedBy: add.ExercisedBy,
		})
	}
}
