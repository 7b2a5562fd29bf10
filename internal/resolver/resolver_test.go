package resolver

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
)

func story(score, size int64) ir.Artifact {
	return ir.Artifact{Kind: ir.KindUserStory, Name: "story", Status: ir.StatusApproved, QualityScore: ir.Int64(score), SizeDays: ir.Int64(size)}
}

func art(kind ir.ArtifactKind, name string, status ir.ArtifactStatus) ir.Artifact {
	return ir.Artifact{Kind: kind, Name: name, Status: status}
}

var (
	plan       = art(ir.KindArchitecturePlan, "plan", ir.StatusApproved)
	accRed     = art(ir.KindAcceptanceTest, "acc", ir.StatusRed)
	accGreen   = art(ir.KindAcceptanceTest, "acc", ir.StatusGreen)
	unitGreen  = art(ir.KindUnitTest, "u1", ir.StatusGreen)
	code       = art(ir.KindDomainCode, "code", ir.StatusGreen)
	intGreen   = art(ir.KindIntegrationTest, "int", ir.StatusGreen)
	ctrGreen   = art(ir.KindContractTest, "ctr", ir.StatusGreen)
	reviewDone = art(ir.KindReviewReport, "review", ir.StatusApproved)
)

type matrixCase struct {
	name      string
	artifacts []ir.Artifact
}

var matrix = []matrixCase{
	{"empty", nil},
	{"story_unscored", []ir.Artifact{art(ir.KindUserStory, "story", ir.StatusPending)}},
	{"story_low_large", []ir.Artifact{story(60, 8)}},
	{"story_low_unsized", []ir.Artifact{{Kind: ir.KindUserStory, Name: "story", Status: ir.StatusPending, QualityScore: ir.Int64(60)}}},
	{"story_low_small", []ir.Artifact{story(60, 3)}},
	{"story_good", []ir.Artifact{story(92, 3)}},
	{"story_at_threshold", []ir.Artifact{story(85, 9)}},
	{"planned", []ir.Artifact{story(92, 3), plan}},
	{"acceptance_pending", []ir.Artifact{story(92, 3), plan, art(ir.KindAcceptanceTest, "acc", ir.StatusPending)}},
	{"acceptance_red", []ir.Artifact{story(92, 3), plan, accRed}},
	{"acceptance_red_with_units", []ir.Artifact{story(92, 3), plan, accRed, unitGreen, code}},
	{"acceptance_green", []ir.Artifact{story(92, 3), plan, accGreen, unitGreen, code}},
	{"integration_red", []ir.Artifact{story(92, 3), plan, accGreen, unitGreen, code, art(ir.KindIntegrationTest, "int", ir.StatusRed)}},
	{"integration_green", []ir.Artifact{story(92, 3), plan, accGreen, unitGreen, code, intGreen}},
	{"contract_green", []ir.Artifact{story(92, 3), plan, accGreen, unitGreen, code, intGreen, ctrGreen}},
	{"review_pending", []ir.Artifact{story(92, 3), plan, accGreen, unitGreen, code, intGreen, ctrGreen, art(ir.KindReviewReport, "review", ir.StatusPending)}},
	{"reviewed", []ir.Artifact{story(92, 3), plan, accGreen, unitGreen, code, intGreen, ctrGreen, reviewDone}},
	{"bad_acceptance_without_code", []ir.Artifact{story(92, 3), plan, accGreen}},
	{"bad_code_without_units", []ir.Artifact{story(92, 3), plan, accRed, code}},
	{"bad_integration_early", []ir.Artifact{story(92, 3), plan, accRed, intGreen}},
	{"bad_contract_early", []ir.Artifact{story(92, 3), plan, accGreen, unitGreen, code, ctrGreen}},
	{"bad_review_early", []ir.Artifact{story(92, 3), plan, accGreen, unitGreen, code, intGreen, reviewDone}},
	{"bad_score", []ir.Artifact{story(120, 3)}},
	{"bad_test_status", []ir.Artifact{story(92, 3), plan, art(ir.KindAcceptanceTest, "acc", ir.StatusApproved)}},
}

func TestResolve_DecisionMatrix(t *testing.T) {
	r := New(DefaultThresholds())
	var buf bytes.Buffer
	for _, c := range matrix {
		ep, err := r.Resolve(session.NewSnapshot(c.artifacts...))
		if err != nil {
			var ie *InconsistentError
			require.ErrorAs(t, err, &ie, c.name)
			fmt.Fprintf(&buf, "%s: %s(%s)\n", c.name, ir.CodeInconsistentArtifactState, ie.Check)
			continue
		}
		fmt.Fprintf(&buf, "%s: %s [%s]\n", c.name, ep, ep.Rule)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "decision_matrix", buf.Bytes())
}

func TestResolve_EmptyStoreStartsWithStoryAuthoring(t *testing.T) {
	ep, err := New(DefaultThresholds()).Resolve(session.NewSnapshot())
	require.NoError(t, err)
	assert.Equal(t, ir.PhasePlanning, ep.Phase)
	assert.Equal(t, ir.SubStepStoryAuthoring, ep.SubStep)
}

func TestResolve_PlannedStoryStartsWithTestWriting(t *testing.T) {
	ep, err := New(DefaultThresholds()).Resolve(session.NewSnapshot(story(92, 3), plan))
	require.NoError(t, err)
	assert.Equal(t, ir.PhaseTestWriting, ep.Phase)
	assert.Equal(t, ir.SubStepNone, ep.SubStep)
}

func TestResolve_Deterministic(t *testing.T) {
	r := New(DefaultThresholds())
	for _, c := range matrix {
		snap := session.NewSnapshot(c.artifacts...)
		first, err1 := r.Resolve(snap)
		for i := 0; i < 5; i++ {
			ep, err := r.Resolve(snap)
			assert.Equal(t, first, ep, c.name)
			assert.Equal(t, err1, err, c.name)
		}
	}
}

func TestResolve_UsesLatestVersion(t *testing.T) {
	snap := session.NewSnapshot(
		story(92, 3), plan,
		ir.Artifact{Kind: ir.KindAcceptanceTest, Name: "acc", Status: ir.StatusPending, Seq: 3},
		ir.Artifact{Kind: ir.KindAcceptanceTest, Name: "acc", Status: ir.StatusRed, Seq: 4},
	)
	ep, err := New(DefaultThresholds()).Resolve(snap)
	require.NoError(t, err)
	assert.Equal(t, ir.PhaseDomainImplementation, ep.Phase)
}

func TestResolve_ConfigurableThresholds(t *testing.T) {
	r := New(Thresholds{Quality: 50, SliceMaxDays: 10})
	ep, err := r.Resolve(session.NewSnapshot(story(60, 8)))
	require.NoError(t, err)
	assert.Equal(t, ir.SubStepArchitecturePlanning, ep.SubStep)

	assert.Equal(t, DefaultThresholds(), New(Thresholds{}).Thresholds())
}

func TestIsInconsistent(t *testing.T) {
	_, err := New(DefaultThresholds()).Resolve(session.NewSnapshot(story(-1, 3)))
	require.Error(t, err)
	assert.True(t, IsInconsistent(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsInconsistent(fmt.Errorf("other")))
}
