package testutil

import "github.com/roach88/pedro/internal/ir"

// Story returns an unscored user story.
func Story(name string) ir.Artifact {
	return ir.Artifact{Kind: ir.KindUserStory, Name: name, Status: ir.StatusPending}
}

// ScoredStory returns a user story carrying a score and size.
func ScoredStory(name string, score, sizeDays int64) ir.Artifact {
	st := ir.StatusPending
	if score >= 85 {
		st = ir.StatusApproved
	}
	return ir.Artifact{
		Kind:         ir.KindUserStory,
		Name:         name,
		Status:       st,
		QualityScore: ir.Int64(score),
		SizeDays:     ir.Int64(sizeDays),
	}
}

// Plan returns an approved architecture plan.
func Plan(name string) ir.Artifact {
	return ir.Artifact{Kind: ir.KindArchitecturePlan, Name: name, Status: ir.StatusApproved}
}

// Profile returns a test profile that classifies as the class expected for
// kind.
func Profile(kind ir.ArtifactKind) *ir.TestProfile {
	switch kind {
	case ir.KindUnitTest:
		return &ir.TestProfile{Scope: ir.ScopeComponent, Doubles: []ir.DoubleTarget{ir.DoubleDrivenPort}}
	case ir.KindAcceptanceTest:
		return &ir.TestProfile{Scope: ir.ScopeUseCase, Doubles: []ir.DoubleTarget{ir.DoubleRepository, ir.DoubleExternalService}}
	case ir.KindIntegrationTest:
		return &ir.TestProfile{Scope: ir.ScopeExternalBoundary, RealBoundaries: []string{"database"}}
	case ir.KindContractTest:
		return &ir.TestProfile{Scope: ir.ScopeDrivingAdapter}
	}
	return nil
}

// Test returns a test artifact of kind with a matching profile.
func Test(kind ir.ArtifactKind, name string) ir.Artifact {
	return ir.Artifact{Kind: kind, Name: name, Profile: Profile(kind)}
}

// Impl returns an implementation artifact proposing a change that traces to
// the objective and adds one method exercised by target.
func Impl(kind ir.ArtifactKind, name, target string) ir.Artifact {
	return ir.Artifact{
		Kind: kind,
		Name: name,
		Change: &ir.ProposedChange{
			Summary:    "implement " + name,
			TracesTo:   []string{"objective"},
			TargetTest: target,
			Additions: []ir.Addition{{
				Name:        name,
				Category:    ir.AdditionMethod,
				ExercisedBy: []string{target},
			}},
		},
	}
}

// Refactoring returns a structural implementation artifact with no additions.
func Refactoring(kind ir.ArtifactKind, name string) ir.Artifact {
	return ir.Artifact{
		Kind: kind,
		Name: name,
		Change: &ir.ProposedChange{
			Summary:  "restructure " + name,
			Kind:     ir.ChangeStructural,
			TracesTo: []string{"objective"},
		},
	}
}

// Review returns a review report with status.
func Review(name string, status ir.ArtifactStatus, content string) ir.Artifact {
	return ir.Artifact{Kind: ir.KindReviewReport, Name: name, Status: status, Content: content}
}
