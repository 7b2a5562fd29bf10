package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyScenarios copies the named scenarios into a fresh directory without
// their golden files.
func copyScenarios(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join("testdata/scenarios", name+".yaml"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), data, 0o644))
	}
	return dir
}

func TestRunSuite_ExampleScenarios(t *testing.T) {
	res, err := RunSuite("testdata/scenarios", SuiteOptions{})
	require.NoError(t, err)

	assert.Equal(t, res.Total, len(res.Scenarios))
	assert.Zero(t, res.Failed)
	assert.Equal(t, res.Total, res.Passed)
	for _, sr := range res.Scenarios {
		assert.True(t, sr.Pass, "%s: %v", sr.Name, sr.Errors)
		assert.Equal(t, "match", sr.Golden, sr.Name)
	}
}

func TestRunSuite_Filter(t *testing.T) {
	res, err := RunSuite("testdata/scenarios", SuiteOptions{Filter: "story_*"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "story_slicing", res.Scenarios[0].Name)
}

func TestRunSuite_InvalidFilter(t *testing.T) {
	_, err := RunSuite("testdata/scenarios", SuiteOptions{Filter: "[bad"})
	assert.ErrorContains(t, err, "invalid filter pattern")
}

func TestRunSuite_MissingDirectory(t *testing.T) {
	_, err := RunSuite(filepath.Join(t.TempDir(), "nope"), SuiteOptions{})
	assert.ErrorContains(t, err, "scenarios directory not found")
}

func TestRunSuite_WithoutGolden(t *testing.T) {
	dir := copyScenarios(t, "empty_store")

	res, err := RunSuite(dir, SuiteOptions{})
	require.NoError(t, err)
	require.Len(t, res.Scenarios, 1)
	assert.True(t, res.Scenarios[0].Pass)
	assert.Empty(t, res.Scenarios[0].Golden)
}

func TestRunSuite_UpdateThenMatch(t *testing.T) {
	dir := copyScenarios(t, "empty_store", "planned_story")

	res, err := RunSuite(dir, SuiteOptions{Update: true})
	require.NoError(t, err)
	for _, sr := range res.Scenarios {
		assert.Equal(t, "updated", sr.Golden)
		assert.FileExists(t, GoldenPath(sr.File))
	}

	want, err := os.ReadFile("testdata/scenarios/golden/empty_store.golden")
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dir, "golden", "empty_store.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	res, err = RunSuite(dir, SuiteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Passed)
	for _, sr := range res.Scenarios {
		assert.Equal(t, "match", sr.Golden)
	}
}

func TestRunSuite_GoldenMismatch(t *testing.T) {
	dir := copyScenarios(t, "empty_store")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "empty_store.golden"), []byte("scenario: stale\n"), 0o644))

	res, err := RunSuite(dir, SuiteOptions{})
	require.NoError(t, err)
	require.Len(t, res.Scenarios, 1)
	sr := res.Scenarios[0]
	assert.False(t, sr.Pass)
	assert.Equal(t, "mismatch", sr.Golden)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, sr.Errors[len(sr.Errors)-1], "--update")
}

func TestRunSuite_BrokenScenarioFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0o644))

	res, err := RunSuite(dir, SuiteOptions{})
	require.NoError(t, err)
	require.Len(t, res.Scenarios, 1)
	assert.False(t, res.Scenarios[0].Pass)
	assert.Equal(t, "broken.yaml", res.Scenarios[0].Name)
	assert.Contains(t, res.Scenarios[0].Errors[0], "failed to load scenario")
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "golden", "c.golden"), GoldenPath(filepath.Join("a", "b", "c.yaml")))
}
