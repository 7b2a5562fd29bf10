// Package classify sorts test artifacts into test classes from the shape of
// their doubles and scope.
package classify

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/pedro/internal/ir"
)

// Problem identifies why a test could not be classified as expected.
type Problem string

const (
	// ProblemMalformed marks a test that doubles domain objects.
	ProblemMalformed Problem = "malformed"
	// ProblemAmbiguous marks a test matching no single class.
	ProblemAmbiguous Problem = "ambiguous"
	// ProblemMismatch marks a test whose class differs from its artifact kind.
	ProblemMismatch Problem = "mismatch"
	// ProblemMissingProfile marks a test artifact with no profile.
	ProblemMissingProfile Problem = "missing_profile"
)

// Error is returned for a test that must be re-authored.
type Error struct {
	Ref     string
	Problem Problem
	Detail  string
}

func (e *Error) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("%s test: %s", e.Problem, e.Detail)
	}
	return fmt.Sprintf("%s: %s test: %s", e.Ref, e.Problem, e.Detail)
}

// IsError reports whether err is a classification Error.
func IsError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

var adapterDoubles = []ir.DoubleTarget{ir.DoubleRepository, ir.DoubleExternalService}

// Classify applies the classification rules in order and returns the first
// class that matches.
func Classify(p ir.TestProfile) (ir.TestClass, error) {
	if p.Doubled(ir.DoubleDomainObject) {
		return "", &Error{Problem: ProblemMalformed, Detail: "domain objects must never be doubled"}
	}
	hasReal := len(p.RealBoundaries) > 0
	switch {
	case p.Scope == ir.ScopeComponent && !hasReal && onlyDoubles(p, ir.DoubleDrivenPort, ir.DoubleRepository, ir.DoubleExternalService):
		return ir.ClassUnit, nil
	case p.Scope == ir.ScopeUseCase && !hasReal && onlyDoubles(p, adapterDoubles...) && allDoubled(p, p.UseCaseAdapters()):
		return ir.ClassAcceptance, nil
	case p.Scope == ir.ScopeExternalBoundary && hasReal && len(p.Doubles) == 0:
		return ir.ClassIntegration, nil
	case p.Scope == ir.ScopeDrivingAdapter && !hasReal:
		return ir.ClassContract, nil
	case p.Scope == ir.ScopeFullStack && len(p.Doubles) == 0:
		return ir.ClassEndToEnd, nil
	}
	return "", &Error{Problem: ProblemAmbiguous, Detail: fmt.Sprintf("scope %q with doubles %v and real boundaries %v matches no single class", p.Scope, p.Doubles, p.RealBoundaries)}
}

func onlyDoubles(p ir.TestProfile, allowed ...ir.DoubleTarget) bool {
	for _, d := range p.Doubles {
		if !slices.Contains(allowed, d) {
			return false
		}
	}
	return true
}

func allDoubled(p ir.TestProfile, required []ir.DoubleTarget) bool {
	for _, d := range required {
		if !p.Doubled(d) {
			return false
		}
	}
	return true
}

// Check classifies a test artifact and verifies the class matches its kind.
func Check(a ir.Artifact) (ir.TestClass, error) {
	want, ok := ir.ExpectedClass(a.Kind)
	if !ok {
		return "", fmt.Errorf("%s is not a classifiable test", a.Ref())
	}
	if a.Profile == nil {
		return "", &Error{Ref: a.Ref(), Problem: ProblemMissingProfile, Detail: "test has no double/scope profile"}
	}
	got, err := Classify(*a.Profile)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Ref = a.Ref()
		}
		return "", err
	}
	if got != want {
		return got, &Error{Ref: a.Ref(), Problem: ProblemMismatch, Detail: fmt.Sprintf("classified as %s, expected %s", got, want)}
	}
	return got, nil
}
