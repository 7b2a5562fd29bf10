package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// TestResult is the printable result of a scenario suite.
type TestResult struct {
	*harness.SuiteResult
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run session scenarios",
		Long: `Run YAML session scenarios against scripted collaborators.

Each scenario starts a session, resumes it as scripted and checks where
every run stopped, the recorded trace and, when scenarios-dir/golden
holds one, the golden snapshot.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  pedro test ./scenarios
  pedro test ./scenarios --filter "story_*"
  pedro test ./scenarios --update
  pedro test ./scenarios --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	suite, err := harness.RunSuite(dir, harness.SuiteOptions{Filter: opts.Filter, Update: opts.Update})
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot run scenarios", err)
	}
	for _, s := range suite.Scenarios {
		opts.Logger.Debug("scenario finished", "scenario", s.Name, "pass", s.Pass, "golden", s.Golden)
	}

	result := TestResult{SuiteResult: suite}
	formatter := opts.formatter(cmd)
	if suite.Failed == 0 {
		return formatter.Success(result)
	}
	if err := formatter.Error("E_SCENARIO", fmt.Sprintf("%d of %d scenario(s) failed", suite.Failed, suite.Total), result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
}

func (r TestResult) String() string {
	if r.Total == 0 {
		return "No scenarios found."
	}
	var b strings.Builder
	tw := newTable(table.Row{"", "Scenario", "Golden"})
	for _, s := range r.Scenarios {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		golden := s.Golden
		if golden == "" {
			golden = "-"
		}
		tw.AppendRow(table.Row{mark, s.Name, golden})
	}
	b.WriteString(tw.Render() + "\n")

	for _, s := range r.Scenarios {
		if s.Pass {
			continue
		}
		fmt.Fprintf(&b, "\n✗ %s (%s)\n", s.Name, s.File)
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  - %s\n", strings.TrimRight(e, "\n"))
		}
	}

	fmt.Fprintf(&b, "\nResults: %d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
	return b.String()
}
