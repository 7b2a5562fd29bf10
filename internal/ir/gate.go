package ir

import (
	"slices"
	"strings"
)

// Verdict is the outcome of a gate check.
type Verdict string

const (
	VerdictProceed  Verdict = "Proceed"
	VerdictModify   Verdict = "Modify"
	VerdictEscalate Verdict = "Escalate"
)

// Severity orders verdicts: Escalate > Modify > Proceed.
func (v Verdict) Severity() int {
	switch v {
	case VerdictEscalate:
		return 2
	case VerdictModify:
		return 1
	}
	return 0
}

// GateReason identifies a triggered scope rule.
type GateReason string

const (
	ReasonNotRequestedByUser        GateReason = "NotRequestedByUser"
	ReasonExcludedByScope           GateReason = "ExcludedByScope"
	ReasonSimplerAlternativeExists  GateReason = "SimplerAlternativeExists"
	ReasonUnrequestedInfrastructure GateReason = "UnrequestedInfrastructure"
	ReasonSolvesFutureProblem       GateReason = "SolvesFutureProblem"
)

// GateResult is the outcome of one gate evaluation.
type GateResult struct {
	ChangeID string       `json:"change_id"`
	Verdict  Verdict      `json:"verdict"`
	Reasons  []GateReason `json:"reasons,omitempty"`
	Details  []string     `json:"details,omitempty"`
}

// Has reports whether reason was triggered.
func (g GateResult) Has(reason GateReason) bool {
	return slices.Contains(g.Reasons, reason)
}

// GateRecord is a gate result kept in the session gate log.
// A record with a verdict other than Proceed stays outstanding until resolved.
type GateRecord struct {
	Seq      int64      `json:"seq"`
	Phase    Phase      `json:"phase"`
	Result   GateResult `json:"result"`
	Resolved bool       `json:"resolved"`
}

// Outstanding reports whether the record blocks commits.
func (r GateRecord) Outstanding() bool {
	return r.Result.Verdict != VerdictProceed && !r.Resolved
}

// ChangeKind separates refactorings from behavior changes.
type ChangeKind string

const (
	ChangeStructural ChangeKind = "Structural"
	ChangeBehavioral ChangeKind = "Behavioral"
)

// AdditionCategory classifies something a proposed change introduces.
type AdditionCategory string

const (
	AdditionMethod         AdditionCategory = "method"
	AdditionType           AdditionCategory = "type"
	AdditionInfrastructure AdditionCategory = "infrastructure"
)

// Addition is a method, type or piece of infrastructure introduced by a
// proposed change, together with the tests that exercise it.
type Addition struct {
	Name        string           `json:"name"`
	Category    AdditionCategory `json:"category"`
	ExercisedBy []string         `json:"exercised_by,omitempty"`
}

// ProposedChange is an implementation proposal submitted by a collaborator.
type ProposedChange struct {
	ID                 string     `json:"id"`
	Summary            string     `json:"summary,omitempty"`
	Kind               ChangeKind `json:"kind"`
	TracesTo           []string   `json:"traces_to,omitempty"`
	TargetTest         string     `json:"target_test,omitempty"`
	Additions          []Addition `json:"additions,omitempty"`
	SimplerAlternative string     `json:"simpler_alternative,omitempty"`
}

// ScopeBoundary lists what is explicitly in and out of scope for a session.
type ScopeBoundary struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// Includes reports whether term matches an Include entry (case-insensitive).
func (b ScopeBoundary) Includes(term string) bool {
	return containsFold(b.Include, term)
}

// Excludes reports whether term matches an Exclude entry (case-insensitive).
func (b ScopeBoundary) Excludes(term string) bool {
	return containsFold(b.Exclude, term)
}

// Apply returns the boundary updated with a scope decision. Terms newly
// included are removed from Exclude and vice versa; the last word wins.
func (b ScopeBoundary) Apply(d ScopeDecision) ScopeBoundary {
	out := ScopeBoundary{}
	for _, term := range b.Include {
		if !containsFold(d.Exclude, term) {
			out.Include = appendFold(out.Include, term)
		}
	}
	for _, term := range b.Exclude {
		if !containsFold(d.Include, term) {
			out.Exclude = appendFold(out.Exclude, term)
		}
	}
	for _, term := range d.Include {
		out.Include = appendFold(out.Include, term)
	}
	for _, term := range d.Exclude {
		out.Exclude = appendFold(out.Exclude, term)
	}
	return out
}

// ScopeDecision is the answer an external caller gives to an escalation.
type ScopeDecision struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
	Note    string   `json:"note,omitempty"`
}

// Empty reports whether the decision carries no scope change.
func (d ScopeDecision) Empty() bool {
	return len(d.Include) == 0 && len(d.Exclude) == 0
}

func containsFold(list []string, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), term) {
			return true
		}
	}
	return false
}

func appendFold(list []string, term string) []string {
	term = strings.TrimSpace(term)
	if term == "" || containsFold(list, term) {
		return list
	}
	return append(list, term)
}
