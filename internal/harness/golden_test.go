package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pedro/internal/ir"
)

func TestRunWithGolden_ExampleScenarios(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)

	for _, f := range files {
		scenario, err := LoadScenario(f)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			// Regenerate with: go test ./internal/harness -run TestRunWithGolden -update
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/planned_story.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	AssertGolden(t, scenario.Name, result)
}

func TestSnapshot_Format(t *testing.T) {
	result := NewResult()
	result.Stops = []Stop{
		{Status: ir.SessionHalted, Phase: ir.PhaseDomainImplementation, Code: ir.CodeAcceptanceTestStalled, Commits: 1},
		{Status: ir.SessionCompleted, Phase: ir.PhaseCommit, Commits: 2},
	}
	result.Trace = []TraceEvent{
		{Seq: 1, Type: ir.EventSessionStarted},
		{Seq: 2, Type: ir.EventPhaseEntered, Phase: "Planning", Attrs: map[string]string{"sub_step": "story_review", "rule": "story_unscored"}},
		{Seq: 3, Type: ir.EventPhaseEntered, Phase: "TestWriting", Attrs: map[string]string{"rule": "no_acceptance"}},
	}
	result.Commits = []ir.Commit{
		{ChangeKind: ir.ChangeBehavioral, Phase: ir.PhaseDomainImplementation, TestStatusAtCommit: ir.SummaryAllGreen, Message: "adds-item: make unit test pass"},
	}
	result.Tests["UnitTest/b"] = ir.OutcomeGreen
	result.Tests["UnitTest/a"] = ir.OutcomeRed

	want := `scenario: sample
stops:
  - halted DomainImplementation AcceptanceTestStalled commits=1
  - completed Commit commits=2
entered:
  - Planning/story_review (story_unscored)
  - TestWriting (no_acceptance)
commits:
  - [Behavioral] DomainImplementation all_green: adds-item: make unit test pass
tests:
  - UnitTest/a: Red
  - UnitTest/b: Green
`
	assert.Equal(t, want, string(Snapshot("sample", result)))
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/full_workflow.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, string(Snapshot(scenario.Name, first)), string(Snapshot(scenario.Name, second)))
}
