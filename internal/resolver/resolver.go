// Package resolver chooses where a session starts from the artifacts that
// already exist.
//
// Resolution is an ordered list of pure predicates evaluated against an
// immutable ArtifactSnapshot. Consistency checks run first; the first
// matching rule wins. The same snapshot always resolves to the same entry
// point.
package resolver

import (
	"errors"
	"fmt"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
)

// Default thresholds.
const (
	DefaultQualityThreshold = 85
	DefaultSliceMaxDays     = 5
)

// Thresholds configure the planning rules.
type Thresholds struct {
	// Quality is the minimum story score to leave story refinement.
	Quality int64
	// SliceMaxDays is the largest size estimate that needs no slicing.
	SliceMaxDays int64
}

// DefaultThresholds returns the default planning thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Quality: DefaultQualityThreshold, SliceMaxDays: DefaultSliceMaxDays}
}

// InconsistentError reports an artifact set that no rule may repair.
type InconsistentError struct {
	Check  string
	Detail string
}

func (e *InconsistentError) Error() string {
	return fmt.Sprintf("inconsistent artifact state (%s): %s", e.Check, e.Detail)
}

// IsInconsistent reports whether err is an InconsistentError.
func IsInconsistent(err error) bool {
	var ie *InconsistentError
	return errors.As(err, &ie)
}

// Resolver maps an artifact snapshot to an entry point.
type Resolver struct {
	thresholds Thresholds
}

// New returns a resolver using th. Zero fields take their defaults.
func New(th Thresholds) *Resolver {
	if th.Quality == 0 {
		th.Quality = DefaultQualityThreshold
	}
	if th.SliceMaxDays == 0 {
		th.SliceMaxDays = DefaultSliceMaxDays
	}
	return &Resolver{thresholds: th}
}

// Thresholds returns the thresholds in use.
func (r *Resolver) Thresholds() Thresholds {
	return r.thresholds
}

// Resolve returns the entry point for snap, or an *InconsistentError.
func (r *Resolver) Resolve(snap session.ArtifactSnapshot) (ir.EntryPoint, error) {
	v := view{snap: snap, th: r.thresholds}
	for _, c := range checks {
		if detail, bad := c.detect(v); bad {
			return ir.EntryPoint{}, &InconsistentError{Check: c.name, Detail: detail}
		}
	}
	for _, rule := range rules {
		if ep, ok := rule.match(v); ok {
			ep.Rule = rule.name
			return ep, nil
		}
	}
	return ir.EntryPoint{}, &InconsistentError{Check: "unmatched", Detail: "no rule applies to the artifact set"}
}
