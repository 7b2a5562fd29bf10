package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pedro/internal/ir"
)

const minimalScenario = `
name: minimal
description: "Minimal scenario"
session:
  objective: let customers check out a cart
expect:
  status: suspended
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
session:
  objective: let customers check out a cart
  include: [cart]
  exclude: [gift cards]
  artifacts:
    - { kind: UserStory, name: checkout-story, status: Approved, quality_score: 92, size_days: 3 }
agent:
  - capability: unit-test
    fail: 1
    artifacts:
      - { kind: UnitTest, name: adds-item, template: test }
runner:
  - test: UnitTest/adds-item
    outcomes: [Red, Green]
scorer:
  - { story: checkout-story, score: 92, size_days: 3 }
expect:
  status: suspended
  phase: TestWriting
  commits: 0
assertions:
  - type: event_contains
    event: phase.entered
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, []string{"cart"}, scenario.Session.Include)
	assert.Equal(t, []string{"gift cards"}, scenario.Session.Exclude)
	require.Len(t, scenario.Session.Artifacts, 1)
	require.Len(t, scenario.Agent, 1)
	assert.Equal(t, 1, scenario.Agent[0].Fail)
	require.Len(t, scenario.Runner, 1)
	assert.Equal(t, []string{"Red", "Green"}, scenario.Runner[0].Outcomes)
	require.Len(t, scenario.Scorer, 1)
	assert.Equal(t, int64(92), scenario.Scorer[0].Score)
	require.NotNil(t, scenario.Expect.Commits)
	assert.Equal(t, 0, *scenario.Expect.Commits)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing name",
			yaml: `
description: "x"
session: { objective: o }
expect: { status: suspended }
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			yaml: `
name: x
session: { objective: o }
expect: { status: suspended }
`,
			wantErr: "description is required",
		},
		{
			name: "missing objective",
			yaml: `
name: x
description: "x"
expect: { status: suspended }
`,
			wantErr: "session.objective is required",
		},
		{
			name: "missing expected status",
			yaml: `
name: x
description: "x"
session: { objective: o }
`,
			wantErr: "expect.status is required",
		},
		{
			name: "unknown status",
			yaml: `
name: x
description: "x"
session: { objective: o }
expect: { status: paused }
`,
			wantErr: `unknown status "paused"`,
		},
		{
			name: "sub-step without entry",
			yaml: `
name: x
description: "x"
session: { objective: o, sub_step: story_review }
expect: { status: suspended }
`,
			wantErr: "session.sub_step requires session.entry",
		},
		{
			name: "unknown entry phase",
			yaml: `
name: x
description: "x"
session: { objective: o, entry: Deploy }
expect: { status: suspended }
`,
			wantErr: "session.entry",
		},
		{
			name: "unknown artifact kind",
			yaml: `
name: x
description: "x"
session:
  objective: o
  artifacts: [{ kind: Spreadsheet, name: s }]
expect: { status: suspended }
`,
			wantErr: `unknown artifact kind "Spreadsheet"`,
		},
		{
			name: "impl template without target",
			yaml: `
name: x
description: "x"
session: { objective: o }
agent:
  - capability: domain-code
    artifacts: [{ kind: DomainCode, name: cart, template: impl }]
expect: { status: suspended }
`,
			wantErr: "template impl needs a target",
		},
		{
			name: "unknown capability",
			yaml: `
name: x
description: "x"
session: { objective: o }
agent: [{ capability: deploy }]
expect: { status: suspended }
`,
			wantErr: `unknown capability "deploy"`,
		},
		{
			name: "unknown outcome",
			yaml: `
name: x
description: "x"
session: { objective: o }
runner: [{ test: UnitTest/a, outcomes: [Yellow] }]
expect: { status: suspended }
`,
			wantErr: `unknown test outcome "Yellow"`,
		},
		{
			name: "runner without outcomes",
			yaml: `
name: x
description: "x"
session: { objective: o }
runner: [{ test: UnitTest/a }]
expect: { status: suspended }
`,
			wantErr: "outcomes or fail is required",
		},
		{
			name: "resume without expectation",
			yaml: `
name: x
description: "x"
session: { objective: o }
expect: { status: suspended }
resume: [{ include: [cache] }]
`,
			wantErr: "resume[0].expect.status is required",
		},
		{
			name: "negative resume iterations",
			yaml: `
name: x
description: "x"
session: { objective: o }
expect: { status: halted }
resume: [{ iterations: -1, expect: { status: suspended } }]
`,
			wantErr: "resume[0].iterations must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_MalformedYAML(t *testing.T) {
	_, err := ParseScenario([]byte("name: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_UnknownFieldsRejected(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "timeout: 5s\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestParseScenario_AssertionValidation(t *testing.T) {
	tests := []struct {
		name      string
		assertion string
		wantErr   string
	}{
		{"missing type", `{ event: x }`, "type is required"},
		{"unknown type", `{ type: final_state }`, `unknown assertion type "final_state"`},
		{"event_contains without event", `{ type: event_contains }`, "event is required for event_contains"},
		{"event_order without events", `{ type: event_order }`, "events list is required"},
		{"event_count without count", `{ type: event_count, event: test.run }`, "count must be non-negative"},
		{"event_count negative", `{ type: event_count, event: test.run, count: -1 }`, "count must be non-negative"},
		{"commit_contains empty", `{ type: commit_contains }`, "kind, phase or message is required"},
		{"test_outcome without outcome", `{ type: test_outcome, test: UnitTest/a }`, "test and outcome are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(minimalScenario + "assertions:\n  - " + tt.assertion + "\n"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_EventCountZeroAllowed(t *testing.T) {
	scenario, err := ParseScenario([]byte(minimalScenario + `assertions:
  - { type: event_count, event: commit.recorded, count: 0 }
`))
	require.NoError(t, err)
	require.NotNil(t, scenario.Assertions[0].Count)
	assert.Equal(t, 0, *scenario.Assertions[0].Count)
}

func TestArtifactSpec_Templates(t *testing.T) {
	t.Run("test template classifies as its kind", func(t *testing.T) {
		a, err := ArtifactSpec{Kind: "IntegrationTest", Name: "orders-db", Template: "test"}.Artifact()
		require.NoError(t, err)
		require.NotNil(t, a.Profile)
		assert.Equal(t, ir.ScopeExternalBoundary, a.Profile.Scope)
	})

	t.Run("impl template adds one exercised method", func(t *testing.T) {
		a, err := ArtifactSpec{
			Kind:     "Repository",
			Name:     "order-repo",
			Template: "impl",
			Target:   "orders-db",
			Change: &ChangeSpec{
				Additions: []AdditionSpec{{Name: "delete", Category: "method"}},
			},
		}.Artifact()
		require.NoError(t, err)
		require.NotNil(t, a.Change)
		assert.Equal(t, "orders-db", a.Change.TargetTest)
		assert.Equal(t, []string{"objective"}, a.Change.TracesTo)
		require.Len(t, a.Change.Additions, 2)
		assert.Equal(t, "delete", a.Change.Additions[1].Name)
		assert.Empty(t, a.Change.Additions[1].ExercisedBy)
	})

	t.Run("explicit fields override the template", func(t *testing.T) {
		a, err := ArtifactSpec{
			Kind:     "DomainCode",
			Name:     "pricing",
			Template: "refactoring",
			Change:   &ChangeSpec{TracesTo: []string{"loyalty points"}},
		}.Artifact()
		require.NoError(t, err)
		assert.Equal(t, ir.ChangeStructural, a.Change.Kind)
		assert.Equal(t, []string{"loyalty points"}, a.Change.TracesTo)
	})

	t.Run("plain artifact with status and score", func(t *testing.T) {
		score, size := int64(92), int64(3)
		a, err := ArtifactSpec{Kind: "UserStory", Name: "s", Status: "approved", QualityScore: &score, SizeDays: &size}.Artifact()
		require.NoError(t, err)
		assert.Equal(t, ir.StatusApproved, a.Status)
		assert.Equal(t, int64(92), *a.QualityScore)
		assert.Equal(t, int64(3), *a.SizeDays)
	})

	t.Run("test template rejects non-test kinds", func(t *testing.T) {
		_, err := ArtifactSpec{Kind: "DomainCode", Name: "cart", Template: "test"}.Artifact()
		assert.ErrorContains(t, err, "needs a test kind")
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := ArtifactSpec{Kind: "UnitTest", Name: "a", Status: "Blue"}.Artifact()
		assert.ErrorContains(t, err, "unknown artifact status")
	})
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "event_contains", AssertEventContains)
	assert.Equal(t, "event_order", AssertEventOrder)
	assert.Equal(t, "event_count", AssertEventCount)
	assert.Equal(t, "commit_contains", AssertCommitContains)
	assert.Equal(t, "test_outcome", AssertTestOutcome)
}

func TestLoadExampleScenarios(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			scenario, err := LoadScenario(f)
			require.NoError(t, err)
			assert.Equal(t, scenario.Name+".yaml", filepath.Base(f), "file name matches scenario name")
		})
	}
}
