package harness

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pedro/internal/ir"
)

// Snapshot renders the parts of a result that describe what a session did:
// where each run stopped, which phases it entered, what it committed and the
// final test outcomes. Event hashes and messages are left out so the
// snapshot stays readable in review.
func Snapshot(name string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)

	b.WriteString("stops:\n")
	for _, s := range result.Stops {
		fmt.Fprintf(&b, "  - %s %s", s.Status, entryName(s.Phase.String(), string(s.SubStep)))
		if s.Code != "" {
			fmt.Fprintf(&b, " %s", s.Code)
		}
		fmt.Fprintf(&b, " commits=%d\n", s.Commits)
	}

	b.WriteString("entered:\n")
	for _, e := range result.Trace {
		if e.Type != ir.EventPhaseEntered {
			continue
		}
		fmt.Fprintf(&b, "  - %s (%s)\n", entryName(e.Phase, e.Attrs["sub_step"]), e.Attrs["rule"])
	}

	b.WriteString("commits:\n")
	for _, c := range result.Commits {
		fmt.Fprintf(&b, "  - [%s] %s %s: %s\n", c.ChangeKind, c.Phase, c.TestStatusAtCommit, c.Message)
	}

	b.WriteString("tests:\n")
	refs := make([]string, 0, len(result.Tests))
	for ref := range result.Tests {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	for _, ref := range refs {
		fmt.Fprintf(&b, "  - %s: %s\n", ref, result.Tests[ref])
	}
	return []byte(b.String())
}

func entryName(phase, subStep string) string {
	if subStep == "" {
		return phase
	}
	return phase + "/" + subStep
}

// GoldenDir is where package tests keep golden snapshots, next to the
// scenarios they belong to.
const GoldenDir = "testdata/scenarios/golden"

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in GoldenDir/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	newGoldie(t).Assert(t, scenario.Name, Snapshot(scenario.Name, result))
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()
	newGoldie(t).Assert(t, scenarioName, Snapshot(scenarioName, result))
}
