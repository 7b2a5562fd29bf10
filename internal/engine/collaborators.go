package engine

import (
	"context"
	"slices"

	"github.com/roach88/pedro/internal/ir"
)

// Capability names the kind of work requested from an AgentInvoker.
type Capability string

const (
	CapUserStory        Capability = "user-story"
	CapStorySlice       Capability = "story-slice"
	CapStoryRefine      Capability = "story-refine"
	CapArchitecturePlan Capability = "architecture-plan"
	CapAcceptanceTest   Capability = "acceptance-test"
	CapUnitTest         Capability = "unit-test"
	CapDomainCode       Capability = "domain-code"
	CapIntegrationTest  Capability = "integration-test"
	CapRepository       Capability = "repository"
	CapContractTest     Capability = "contract-test"
	CapController       Capability = "controller"
	CapReview           Capability = "review"
	CapRefactor         Capability = "refactor"
)

var capabilityKinds = map[Capability][]ir.ArtifactKind{
	CapUserStory:        {ir.KindUserStory},
	CapStorySlice:       {ir.KindUserStory},
	CapStoryRefine:      {ir.KindUserStory},
	CapArchitecturePlan: {ir.KindArchitecturePlan},
	CapAcceptanceTest:   {ir.KindAcceptanceTest},
	CapUnitTest:         {ir.KindUnitTest},
	CapDomainCode:       {ir.KindDomainCode},
	CapIntegrationTest:  {ir.KindIntegrationTest},
	CapRepository:       {ir.KindRepository},
	CapContractTest:     {ir.KindContractTest},
	CapController:       {ir.KindController},
	CapReview:           {ir.KindReviewReport},
	CapRefactor:         {ir.KindDomainCode, ir.KindRepository, ir.KindController},
}

// Capabilities returns every capability the sequencer may request.
func Capabilities() []Capability {
	out := make([]Capability, 0, len(capabilityKinds))
	for c := range capabilityKinds {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Kinds returns the artifact kinds a capability may produce. The first kind
// is the default for artifacts returned without one.
func (c Capability) Kinds() []ir.ArtifactKind {
	return slices.Clone(capabilityKinds[c])
}

// AgentRequest is the context handed to an AgentInvoker.
type AgentRequest struct {
	SessionID  string           `json:"session_id"`
	Capability Capability       `json:"capability"`
	Objective  string           `json:"objective"`
	Scope      ir.ScopeBoundary `json:"scope"`
	Phase      ir.Phase         `json:"phase"`
	TargetTest string           `json:"target_test,omitempty"`
	Feedback   []string         `json:"feedback,omitempty"`
	Attempt    int              `json:"attempt"`
	Inputs     []ir.Artifact    `json:"inputs,omitempty"`
}

// AgentInvoker produces artifacts: stories, plans, tests and implementations.
//
// Invoke must be safe to retry. Returning an error wrapped with
// backoff.Permanent stops retries immediately.
type AgentInvoker interface {
	Invoke(ctx context.Context, capability Capability, req AgentRequest) (ir.Artifact, error)
}

// QualityScorer scores a user story and estimates its size in days.
type QualityScorer interface {
	Score(ctx context.Context, story ir.Artifact) (ir.QualityAssessment, error)
}

// TestRunner runs a test artifact. It is the only source of test status.
type TestRunner interface {
	Run(ctx context.Context, test ir.Artifact) (ir.TestOutcome, error)
}
