package ir

import (
	"fmt"
	"slices"
	"strings"
)

// ArtifactKind names a deliverable produced by an external collaborator.
type ArtifactKind string

const (
	KindUserStory        ArtifactKind = "UserStory"
	KindArchitecturePlan ArtifactKind = "ArchitecturePlan"
	KindAcceptanceTest   ArtifactKind = "AcceptanceTest"
	KindUnitTest         ArtifactKind = "UnitTest"
	KindIntegrationTest  ArtifactKind = "IntegrationTest"
	KindContractTest     ArtifactKind = "ContractTest"
	KindDomainCode       ArtifactKind = "DomainCode"
	KindRepository       ArtifactKind = "Repository"
	KindController       ArtifactKind = "Controller"
	KindReviewReport     ArtifactKind = "ReviewReport"
)

var artifactKinds = []ArtifactKind{
	KindUserStory, KindArchitecturePlan, KindAcceptanceTest, KindUnitTest,
	KindIntegrationTest, KindContractTest, KindDomainCode, KindRepository,
	KindController, KindReviewReport,
}

// ArtifactKinds returns all kinds in declaration order.
func ArtifactKinds() []ArtifactKind {
	return slices.Clone(artifactKinds)
}

// Valid reports whether k is a known kind.
func (k ArtifactKind) Valid() bool {
	return slices.Contains(artifactKinds, k)
}

// IsTest reports whether artifacts of this kind are tests run by a TestRunner.
func (k ArtifactKind) IsTest() bool {
	switch k {
	case KindAcceptanceTest, KindUnitTest, KindIntegrationTest, KindContractTest:
		return true
	}
	return false
}

// ParseArtifactKind parses a kind name, ignoring case, dashes and underscores.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	key := normalizeName(s)
	for _, k := range artifactKinds {
		if normalizeName(string(k)) == key {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown artifact kind %q", s)
}

// ArtifactStatus is the quality status of an artifact.
type ArtifactStatus string

const (
	StatusPending  ArtifactStatus = "Pending"
	StatusRed      ArtifactStatus = "Red"
	StatusGreen    ArtifactStatus = "Green"
	StatusApproved ArtifactStatus = "Approved"
)

// ParseArtifactStatus parses a status name, ignoring case.
func ParseArtifactStatus(s string) (ArtifactStatus, error) {
	key := normalizeName(s)
	for _, st := range []ArtifactStatus{StatusPending, StatusRed, StatusGreen, StatusApproved} {
		if normalizeName(string(st)) == key {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown artifact status %q", s)
}

// Artifact is a named deliverable produced by an external collaborator.
//
// QualityScore and SizeDays are only meaningful for user stories, Profile only
// for tests and Change only for implementation artifacts.
type Artifact struct {
	Kind         ArtifactKind    `json:"kind"`
	Name         string          `json:"name"`
	Status       ArtifactStatus  `json:"status"`
	QualityScore *int64          `json:"quality_score,omitempty"`
	SizeDays     *int64          `json:"size_days,omitempty"`
	Profile      *TestProfile    `json:"profile,omitempty"`
	Change       *ProposedChange `json:"change,omitempty"`
	Content      string          `json:"content,omitempty"`
	Seq          int64           `json:"seq"`
}

// Ref returns "Kind/name", the artifact's identity within a session.
func (a Artifact) Ref() string {
	return string(a.Kind) + "/" + a.Name
}

// SplitRef parses a "Kind/name" reference as produced by Artifact.Ref.
func SplitRef(ref string) (ArtifactKind, string, bool) {
	kind, name, ok := strings.Cut(ref, "/")
	if !ok || name == "" || !ArtifactKind(kind).Valid() {
		return "", "", false
	}
	return ArtifactKind(kind), name, true
}

// Int64 returns a pointer to n, for optional artifact fields.
func Int64(n int64) *int64 {
	return &n
}

// QualityAssessment is what a QualityScorer reports for a user story.
type QualityAssessment struct {
	Score    int64 `json:"score"`
	SizeDays int64 `json:"size_days"`
}

// TestOutcome is the result of running one test artifact.
type TestOutcome string

const (
	OutcomeRed   TestOutcome = "Red"
	OutcomeGreen TestOutcome = "Green"
	OutcomeError TestOutcome = "Error"
)

// ParseTestOutcome parses an outcome name, ignoring case.
func ParseTestOutcome(s string) (TestOutcome, error) {
	key := normalizeName(s)
	for _, o := range []TestOutcome{OutcomeRed, OutcomeGreen, OutcomeError} {
		if normalizeName(string(o)) == key {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown test outcome %q", s)
}

// TestScope is what a test exercises.
type TestScope string

const (
	ScopeComponent        TestScope = "component"
	ScopeUseCase          TestScope = "use_case"
	ScopeExternalBoundary TestScope = "external_boundary"
	ScopeDrivingAdapter   TestScope = "driving_adapter"
	ScopeFullStack        TestScope = "full_stack"
)

// DoubleTarget is a kind of collaborator a test replaces with a double.
type DoubleTarget string

const (
	DoubleDomainObject    DoubleTarget = "domain_object"
	DoubleDrivenPort      DoubleTarget = "driven_port"
	DoubleRepository      DoubleTarget = "repository"
	DoubleExternalService DoubleTarget = "external_service"
)

// TestProfile describes the scope and doubles of a test artifact. It is the
// input of test classification.
type TestProfile struct {
	Scope          TestScope      `json:"scope"`
	Doubles        []DoubleTarget `json:"doubles,omitempty"`
	RealBoundaries []string       `json:"real_boundaries,omitempty"`
	// Adapters lists the adapters the exercised use case depends on. Empty
	// means both a repository and an external service.
	Adapters []DoubleTarget `json:"adapters,omitempty"`
}

// Doubled reports whether the profile replaces target with a double.
func (p TestProfile) Doubled(target DoubleTarget) bool {
	return slices.Contains(p.Doubles, target)
}

// UseCaseAdapters returns the adapters a use-case test has to double.
func (p TestProfile) UseCaseAdapters() []DoubleTarget {
	if len(p.Adapters) > 0 {
		return p.Adapters
	}
	return []DoubleTarget{DoubleRepository, DoubleExternalService}
}

// TestClass is the category a test falls into.
type TestClass string

const (
	ClassUnit        TestClass = "Unit"
	ClassIntegration TestClass = "Integration"
	ClassContract    TestClass = "Contract"
	ClassAcceptance  TestClass = "Acceptance"
	ClassEndToEnd    TestClass = "EndToEnd"
)

// ExpectedClass returns the class a test artifact of kind k must classify as.
func ExpectedClass(k ArtifactKind) (TestClass, bool) {
	switch k {
	case KindUnitTest:
		return ClassUnit, true
	case KindAcceptanceTest:
		return ClassAcceptance, true
	case KindIntegrationTest:
		return ClassIntegration, true
	case KindContractTest:
		return ClassContract, true
	}
	return "", false
}
