package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pedro/internal/harness"
)

const scenariosDir = "../harness/testdata/scenarios"

func TestTestCommand_ExampleScenarios(t *testing.T) {
	out, err := newCLIEnv(t).run("test", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "full_workflow")
	assert.Contains(t, out, "match")
	assert.Contains(t, out, "0 failed")
	assert.NotContains(t, out, "✗")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := newCLIEnv(t).run("--format", "json", "test", scenariosDir, "--filter", "story_*")
	require.NoError(t, err)
	suite := decodeData[harness.SuiteResult](t, out)
	require.Equal(t, 1, suite.Total)
	assert.Equal(t, "story_slicing", suite.Scenarios[0].Name)
	assert.True(t, suite.Scenarios[0].Pass)
}

func TestTestCommand_NoMatches(t *testing.T) {
	out, err := newCLIEnv(t).run("test", scenariosDir, "--filter", "nothing_*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_status.yaml"), []byte(`
name: wrong_status
description: "expects a completed session from an empty store"
session:
  objective: let customers check out a cart
expect:
  status: completed
`), 0o644))

	env := newCLIEnv(t)
	out, err := env.run("test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_status")
	assert.Contains(t, out, "Results: 0 passed, 1 failed, 1 total")
	assert.Contains(t, out, "Error [E_SCENARIO]")

	out, err = env.run("--format", "json", "test", dir)
	require.Error(t, err)
	var resp struct {
		Status string              `json:"status"`
		Data   harness.SuiteResult `json:"data"`
		Error  CLIError            `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_SCENARIO", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestTestCommand_UpdateWritesGolden(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(filepath.Join(scenariosDir, "planned_story.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planned_story.yaml"), data, 0o644))

	env := newCLIEnv(t)
	out, err := env.run("test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "-")

	_, err = env.run("test", dir, "--update")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "golden", "planned_story.golden"))

	out, err = env.run("--format", "json", "test", dir)
	require.NoError(t, err)
	suite := decodeData[harness.SuiteResult](t, out)
	require.Len(t, suite.Scenarios, 1)
	assert.Equal(t, "match", suite.Scenarios[0].Golden)
}

func TestTestCommand_MissingDirectory(t *testing.T) {
	_, err := newCLIEnv(t).run("test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
