// Package gate applies the scope rules to proposed changes.
//
// Every rule is evaluated and each failure is recorded in rule order. The
// verdict is the most severe outcome: Escalate over Modify over Proceed.
// The evaluator only reads the session; recording the result in the gate
// log is the caller's job.
package gate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
)

// Evaluator checks proposed changes against a session's objective and scope.
type Evaluator struct{}

// New returns an Evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

type finding struct {
	reason  ir.GateReason
	verdict ir.Verdict
	detail  string
}

// Evaluate runs necessity, simplicity, explicitness and future-proofing
// checks on change.
func (e *Evaluator) Evaluate(change ir.ProposedChange, s *session.Session) ir.GateResult {
	var findings []finding
	findings = append(findings, necessity(change, s)...)
	findings = append(findings, simplicity(change)...)
	findings = append(findings, explicitness(change, s)...)
	findings = append(findings, futureProofing(change, s)...)

	res := ir.GateResult{ChangeID: change.ID, Verdict: ir.VerdictProceed}
	for _, f := range findings {
		if !res.Has(f.reason) {
			res.Reasons = append(res.Reasons, f.reason)
		}
		res.Details = append(res.Details, f.detail)
		if f.verdict.Severity() > res.Verdict.Severity() {
			res.Verdict = f.verdict
		}
	}
	return res
}

func necessity(c ir.ProposedChange, s *session.Session) []finding {
	var out []finding
	scope := s.Scope()
	traced := false
	for _, term := range c.TracesTo {
		if scope.Excludes(term) {
			out = append(out, finding{ir.ReasonExcludedByScope, ir.VerdictEscalate,
				fmt.Sprintf("%s traces to %q, which is excluded from scope", c.ID, term)})
			continue
		}
		if tracesToObjective(term, s.Objective()) || scope.Includes(term) {
			traced = true
		}
	}
	if !traced {
		out = append([]finding{{ir.ReasonNotRequestedByUser, ir.VerdictEscalate,
			fmt.Sprintf("%s does not trace to the objective or an included scope entry", c.ID)}}, out...)
	}
	return out
}

func tracesToObjective(term, objective string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return false
	}
	if strings.EqualFold(term, "objective") {
		return true
	}
	return strings.Contains(strings.ToLower(objective), strings.ToLower(term))
}

func simplicity(c ir.ProposedChange) []finding {
	if c.SimplerAlternative == "" {
		return nil
	}
	return []finding{{ir.ReasonSimplerAlternativeExists, ir.VerdictModify,
		fmt.Sprintf("simpler alternative: %s", c.SimplerAlternative)}}
}

func explicitness(c ir.ProposedChange, s *session.Session) []finding {
	var out []finding
	for _, add := range c.Additions {
		if add.Category != ir.AdditionInfrastructure {
			continue
		}
		if c.TargetTest != "" && exercisedBy(add, c.TargetTest) {
			continue
		}
		if s.Scope().Includes(add.Name) {
			continue
		}
		out = append(out, finding{ir.ReasonUnrequestedInfrastructure, ir.VerdictEscalate,
			fmt.Sprintf("infrastructure %q is not required by the failing test and not in scope", add.Name)})
	}
	return out
}

func futureProofing(c ir.ProposedChange, s *session.Session) []finding {
	known := knownTests(s)
	var out []finding
	for _, add := range c.Additions {
		if add.Category != ir.AdditionMethod && add.Category != ir.AdditionType {
			continue
		}
		exercised := c.TargetTest != "" && exercisedBy(add, c.TargetTest)
		for _, t := range add.ExercisedBy {
			if known[t] {
				exercised = true
			}
		}
		if !exercised {
			out = append(out, finding{ir.ReasonSolvesFutureProblem, ir.VerdictModify,
				fmt.Sprintf("%s %q is exercised by no existing or pending test", add.Category, add.Name)})
		}
	}
	return out
}

func exercisedBy(add ir.Addition, test string) bool {
	return slices.Contains(add.ExercisedBy, test)
}

// knownTests indexes recorded tests by name and by ref.
func knownTests(s *session.Session) map[string]bool {
	snap := s.Artifacts()
	known := make(map[string]bool)
	for _, kind := range ir.ArtifactKinds() {
		if !kind.IsTest() {
			continue
		}
		for _, a := range snap.All(kind) {
			known[a.Name] = true
			known[a.Ref()] = true
		}
	}
	return known
}
