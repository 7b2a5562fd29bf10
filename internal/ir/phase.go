package ir

import (
	"fmt"
	"strings"
)

// Phase is one ordered stage of the feature-delivery workflow.
// The zero value is PhasePlanning, the first phase.
type Phase int

const (
	PhasePlanning Phase = iota
	PhaseTestWriting
	PhaseDomainImplementation
	PhaseIntegration
	PhaseContract
	PhaseReview
	PhaseCommit
)

var phaseNames = [...]string{
	PhasePlanning:             "Planning",
	PhaseTestWriting:          "TestWriting",
	PhaseDomainImplementation: "DomainImplementation",
	PhaseIntegration:          "Integration",
	PhaseContract:             "Contract",
	PhaseReview:               "Review",
	PhaseCommit:               "Commit",
}

// Phases returns every phase in workflow order.
func Phases() []Phase {
	out := make([]Phase, 0, len(phaseNames))
	for p := range phaseNames {
		out = append(out, Phase(p))
	}
	return out
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	return p >= PhasePlanning && p <= PhaseCommit
}

func (p Phase) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Next returns the phase that follows p. ok is false for PhaseCommit.
func (p Phase) Next() (next Phase, ok bool) {
	if !p.Valid() || p == PhaseCommit {
		return p, false
	}
	return p + 1, true
}

// ParsePhase parses a phase name. Matching ignores case, dashes and
// underscores so "domain-implementation" and "DomainImplementation" are equal.
func ParsePhase(s string) (Phase, error) {
	key := normalizeName(s)
	for i, name := range phaseNames {
		if normalizeName(name) == key {
			return Phase(i), nil
		}
	}
	return PhasePlanning, fmt.Errorf("unknown phase %q", s)
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
}

// SubStep refines PhasePlanning. It is empty for every other phase.
type SubStep string

const (
	SubStepNone                 SubStep = ""
	SubStepStoryAuthoring       SubStep = "story_authoring"
	SubStepStoryReview          SubStep = "story_review"
	SubStepStorySlicing         SubStep = "story_slicing"
	SubStepStoryRefinement      SubStep = "story_refinement"
	SubStepArchitecturePlanning SubStep = "architecture_planning"
)

// EntryPoint is the outcome of entry point resolution: the phase (and
// planning sub-step) to run next, and the name of the rule that chose it.
type EntryPoint struct {
	Phase   Phase   `json:"phase"`
	SubStep SubStep `json:"sub_step,omitempty"`
	Rule    string  `json:"rule"`
}

func (e EntryPoint) String() string {
	if e.SubStep != SubStepNone {
		return fmt.Sprintf("%s/%s", e.Phase, e.SubStep)
	}
	return e.Phase.String()
}
