package resolver

import (
	"fmt"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
)

// view wraps a snapshot with the helpers the predicates share.
type view struct {
	snap session.ArtifactSnapshot
	th   Thresholds
}

func (v view) latest(kind ir.ArtifactKind) (ir.Artifact, bool) {
	return v.snap.Latest(kind)
}

func (v view) status(kind ir.ArtifactKind) (ir.ArtifactStatus, bool) {
	a, ok := v.snap.Latest(kind)
	return a.Status, ok
}

func (v view) green(kind ir.ArtifactKind) bool {
	st, ok := v.status(kind)
	return ok && st == ir.StatusGreen
}

type check struct {
	name   string
	detect func(v view) (string, bool)
}

type rule struct {
	name  string
	match func(v view) (ir.EntryPoint, bool)
}

var checks = []check{
	{"score_range", func(v view) (string, bool) {
		for _, s := range v.snap.All(ir.KindUserStory) {
			if s.QualityScore != nil && (*s.QualityScore < 0 || *s.QualityScore > 100) {
				return fmt.Sprintf("UserStory %q has quality score %d outside 0-100", s.Name, *s.QualityScore), true
			}
		}
		return "", false
	}},
	{"test_status", func(v view) (string, bool) {
		for _, kind := range ir.ArtifactKinds() {
			if !kind.IsTest() {
				continue
			}
			for _, a := range v.snap.All(kind) {
				if a.Status == ir.StatusApproved {
					return fmt.Sprintf("%s is Approved; tests are only Pending, Red or Green", a.Ref()), true
				}
			}
		}
		return "", false
	}},
	{"acceptance_without_code", func(v view) (string, bool) {
		if v.green(ir.KindAcceptanceTest) && !v.snap.Has(ir.KindDomainCode) {
			return "AcceptanceTest is Green but no DomainCode is recorded", true
		}
		return "", false
	}},
	{"code_without_unit_test", func(v view) (string, bool) {
		if v.snap.Has(ir.KindDomainCode) && !v.snap.Has(ir.KindUnitTest) {
			return "DomainCode is recorded without any UnitTest", true
		}
		return "", false
	}},
	{"integration_before_acceptance", func(v view) (string, bool) {
		if v.snap.Has(ir.KindIntegrationTest) && !v.green(ir.KindAcceptanceTest) {
			return "IntegrationTest is recorded while AcceptanceTest is absent or not Green", true
		}
		return "", false
	}},
	{"contract_before_integration", func(v view) (string, bool) {
		if v.snap.Has(ir.KindContractTest) && !v.green(ir.KindIntegrationTest) {
			return "ContractTest is recorded while IntegrationTest is absent or not Green", true
		}
		return "", false
	}},
	{"review_before_contract", func(v view) (string, bool) {
		if v.snap.Has(ir.KindReviewReport) && !v.green(ir.KindContractTest) {
			return "ReviewReport is recorded while ContractTest is absent or not Green", true
		}
		return "", false
	}},
}

func planning(sub ir.SubStep) ir.EntryPoint {
	return ir.EntryPoint{Phase: ir.PhasePlanning, SubStep: sub}
}

func phase(p ir.Phase) ir.EntryPoint {
	return ir.EntryPoint{Phase: p}
}

var rules = []rule{
	{"no_story", func(v view) (ir.EntryPoint, bool) {
		return planning(ir.SubStepStoryAuthoring), !v.snap.Has(ir.KindUserStory)
	}},
	{"story_unscored", func(v view) (ir.EntryPoint, bool) {
		s, _ := v.latest(ir.KindUserStory)
		return planning(ir.SubStepStoryReview), s.QualityScore == nil
	}},
	{"story_too_large", func(v view) (ir.EntryPoint, bool) {
		s, _ := v.latest(ir.KindUserStory)
		small := s.SizeDays != nil && *s.SizeDays <= v.th.SliceMaxDays
		return planning(ir.SubStepStorySlicing), *s.QualityScore < v.th.Quality && !small
	}},
	{"story_below_threshold", func(v view) (ir.EntryPoint, bool) {
		s, _ := v.latest(ir.KindUserStory)
		return planning(ir.SubStepStoryRefinement), *s.QualityScore < v.th.Quality
	}},
	{"no_plan", func(v view) (ir.EntryPoint, bool) {
		return planning(ir.SubStepArchitecturePlanning), !v.snap.Has(ir.KindArchitecturePlan)
	}},
	{"no_acceptance", func(v view) (ir.EntryPoint, bool) {
		st, ok := v.status(ir.KindAcceptanceTest)
		return phase(ir.PhaseTestWriting), !ok || st == ir.StatusPending
	}},
	{"acceptance_red", func(v view) (ir.EntryPoint, bool) {
		st, _ := v.status(ir.KindAcceptanceTest)
		return phase(ir.PhaseDomainImplementation), st == ir.StatusRed
	}},
	{"integration_pending", func(v view) (ir.EntryPoint, bool) {
		return phase(ir.PhaseIntegration), v.green(ir.KindAcceptanceTest) && !v.green(ir.KindIntegrationTest)
	}},
	{"contract_pending", func(v view) (ir.EntryPoint, bool) {
		return phase(ir.PhaseContract), v.green(ir.KindIntegrationTest) && !v.green(ir.KindContractTest)
	}},
	{"review_pending", func(v view) (ir.EntryPoint, bool) {
		r, ok := v.latest(ir.KindReviewReport)
		return phase(ir.PhaseReview), v.green(ir.KindContractTest) && (!ok || r.Status != ir.StatusApproved)
	}},
	{"reviewed", func(v view) (ir.EntryPoint, bool) {
		return phase(ir.PhaseCommit), v.green(ir.KindContractTest)
	}},
}
