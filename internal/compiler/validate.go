package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/pedro/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Manifest errors (E101-E109)
	ErrObjectiveEmpty     = "E101" // objective is required
	ErrDuplicateArtifact  = "E102" // same kind and name seeded twice
	ErrSubStepOutsidePlan = "E103" // sub_step given for a phase other than Planning
	ErrUnknownSubStep     = "E104" // sub_step is not a planning sub-step
	ErrAcceptanceCount    = "E105" // more than one acceptance test seeded
	ErrScopeConflict      = "E106" // term both included and excluded
	ErrProfileOnNonTest   = "E107" // profile on an artifact that is not a test
)

var subSteps = []ir.SubStep{
	ir.SubStepStoryAuthoring,
	ir.SubStepStoryReview,
	ir.SubStepStorySlicing,
	ir.SubStepStoryRefinement,
	ir.SubStepArchitecturePlanning,
}

// ValidationError represents a manifest validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled manifest for errors the schema cannot express.
// Returns all errors found (does not fail-fast).
func Validate(m *Manifest) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(m.Objective) == "" {
		errs = append(errs, ValidationError{
			Field:   "objective",
			Message: "objective is required and must be non-empty",
			Code:    ErrObjectiveEmpty,
		})
	}

	for _, term := range m.Scope.Include {
		if m.Scope.Excludes(term) {
			errs = append(errs, ValidationError{
				Field:   "scope",
				Message: fmt.Sprintf("%q is both included and excluded", term),
				Code:    ErrScopeConflict,
			})
		}
	}

	if m.Entry != nil && m.Entry.SubStep != ir.SubStepNone {
		switch {
		case m.Entry.Phase != ir.PhasePlanning:
			errs = append(errs, ValidationError{
				Field:   "sub_step",
				Message: fmt.Sprintf("sub_step is only valid with entry %s", ir.PhasePlanning),
				Code:    ErrSubStepOutsidePlan,
			})
		case !knownSubStep(m.Entry.SubStep):
			errs = append(errs, ValidationError{
				Field:   "sub_step",
				Message: fmt.Sprintf("unknown planning sub-step %q", m.Entry.SubStep),
				Code:    ErrUnknownSubStep,
			})
		}
	}

	seen := make(map[string]bool)
	acceptance := 0
	for i, a := range m.Artifacts {
		field := fmt.Sprintf("artifacts[%d]", i)
		if seen[a.Ref()] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s is seeded more than once", a.Ref()),
				Code:    ErrDuplicateArtifact,
			})
		}
		seen[a.Ref()] = true
		if a.Kind == ir.KindAcceptanceTest {
			acceptance++
		}
		if a.Profile != nil && !a.Kind.IsTest() {
			errs = append(errs, ValidationError{
				Field:   field + ".profile",
				Message: fmt.Sprintf("%s is not a test and cannot carry a profile", a.Ref()),
				Code:    ErrProfileOnNonTest,
			})
		}
	}
	if acceptance > 1 {
		errs = append(errs, ValidationError{
			Field:   "artifacts",
			Message: fmt.Sprintf("%d acceptance tests seeded; a session tracks exactly one", acceptance),
			Code:    ErrAcceptanceCount,
		})
	}

	return errs
}

func knownSubStep(s ir.SubStep) bool {
	for _, known := range subSteps {
		if s == known {
			return true
		}
	}
	return false
}
