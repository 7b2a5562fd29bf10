package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
	"github.com/roach88/pedro/internal/store"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Session string
}

// StatusView is the printable state of one session.
type StatusView struct {
	Session    string              `json:"session"`
	Objective  string              `json:"objective"`
	Status     ir.SessionStatus    `json:"status"`
	Phase      ir.Phase            `json:"phase"`
	SubStep    ir.SubStep          `json:"sub_step,omitempty"`
	Scope      ir.ScopeBoundary    `json:"scope"`
	TestStatus ir.TestSummary      `json:"test_status"`
	Iteration  int                 `json:"iteration"`
	Suspension *ir.Suspension      `json:"suspension,omitempty"`
	Tests      []session.TestEntry `json:"tests"`
	Gates      []ir.GateRecord     `json:"pending_gates"`
	Commits    []ir.Commit         `json:"commits"`
	NotFound   bool                `json:"not_found,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where a session is",
		Long: `Show a session's phase, status, test results, pending gate results
and commits. The exit status is 0 whatever state the session is in, and
an unknown id is reported as not found rather than as an error.

Examples:
  pedro status --session 0192...
  pedro status --session 0192... --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	s, err := loadSession(cmd, st, opts.Session)
	if errors.Is(err, store.ErrNotFound) {
		return opts.formatter(cmd).Success(StatusView{Session: opts.Session, NotFound: true})
	}
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Success(newStatusView(s))
}

func newStatusView(s *session.Session) StatusView {
	tests := s.Tests()
	return StatusView{
		Session:    s.ID(),
		Objective:  s.Objective(),
		Status:     s.Status(),
		Phase:      s.Phase(),
		SubStep:    s.SubStep(),
		Scope:      s.Scope(),
		TestStatus: tests.Summary(),
		Iteration:  s.Loop().Iteration,
		Suspension: s.Suspension(),
		Tests:      tests.Entries(),
		Gates:      s.OutstandingGates(),
		Commits:    s.Commits(),
	}
}

func (v StatusView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session:   %s\n", v.Session)
	if v.NotFound {
		b.WriteString("Status:    not found")
		return b.String()
	}
	fmt.Fprintf(&b, "Objective: %s\n", v.Objective)
	fmt.Fprintf(&b, "Status:    %s\n", v.Status)
	fmt.Fprintf(&b, "Phase:     %s\n", ir.EntryPoint{Phase: v.Phase, SubStep: v.SubStep})
	fmt.Fprintf(&b, "Tests:     %s (iteration %d)\n", v.TestStatus, v.Iteration)
	if len(v.Scope.Include) > 0 || len(v.Scope.Exclude) > 0 {
		fmt.Fprintf(&b, "Scope:     include=%s exclude=%s\n",
			strings.Join(v.Scope.Include, ","), strings.Join(v.Scope.Exclude, ","))
	}
	if sus := v.Suspension; sus != nil {
		fmt.Fprintf(&b, "Stopped:   %s: %s\n", sus.Code, sus.Message)
		fmt.Fprintf(&b, "Token:     %s\n", sus.Token)
	}

	if len(v.Tests) > 0 {
		tw := newTable(table.Row{"Kind", "Name", "Outcome"})
		for _, e := range v.Tests {
			outcome := string(e.Outcome)
			if outcome == "" {
				outcome = "-"
			}
			tw.AppendRow(table.Row{e.Kind, e.Name, outcome})
		}
		b.WriteString("\n" + tw.Render() + "\n")
	}

	if len(v.Gates) > 0 {
		tw := newTable(table.Row{"Seq", "Phase", "Change", "Verdict", "Reasons"})
		for _, g := range v.Gates {
			reasons := make([]string, len(g.Result.Reasons))
			for i, r := range g.Result.Reasons {
				reasons[i] = string(r)
			}
			tw.AppendRow(table.Row{g.Seq, g.Phase, g.Result.ChangeID, g.Result.Verdict, strings.Join(reasons, ", ")})
		}
		b.WriteString("\nPending gate results:\n" + tw.Render() + "\n")
	}

	if len(v.Commits) > 0 {
		tw := newTable(table.Row{"Seq", "Kind", "Phase", "Tests", "Message"})
		for _, c := range v.Commits {
			tw.AppendRow(table.Row{c.Seq, c.ChangeKind, c.Phase, c.TestStatusAtCommit, c.Message})
		}
		b.WriteString("\nCommits:\n" + tw.Render() + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
