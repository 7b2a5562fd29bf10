package cli

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
	"github.com/roach88/pedro/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Session string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	Session       string   `json:"session"`
	Status        string   `json:"status"`
	Events        int      `json:"events"`
	Commits       int      `json:"commits"`
	Deterministic bool     `json:"deterministic"`
	Problems      []string `json:"problems,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-read stored sessions and verify they are intact",
		Long: `Re-read every stored session and check that it reproduces itself:
the trace is gap free, phases never move backwards, commit ids and
suspension tokens match their content, the stored fingerprint matches
the trace and restoring the session twice yields the same state.

Exit codes:
  0 - All sessions verified
  1 - Verification failed for at least one session
  2 - Command error (database not found, etc.)

Examples:
  pedro replay
  pedro replay --session 0192...
  pedro replay --db ./pedro.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "replay one session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	var ids []string
	if opts.Session != "" {
		ids = []string{opts.Session}
	} else {
		list, err := st.List(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		for _, s := range list {
			ids = append(ids, s.ID)
		}
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(ids)),
		TotalSessions:    len(ids),
		AllDeterministic: true,
	}
	for _, id := range ids {
		sr, err := replaySession(ctx, st, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", id), err)
		}
		result.Sessions = append(result.Sessions, sr)
		if !sr.Deterministic {
			result.AllDeterministic = false
		}
	}
	opts.Logger.Debug("replay finished", "sessions", result.TotalSessions, "ok", result.AllDeterministic)

	formatter := opts.formatter(cmd)
	if result.AllDeterministic {
		return formatter.Success(result)
	}
	if err := formatter.Error("E_DETERMINISM", "replay verification failed", result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, "replay verification failed")
}

// replaySession loads one session and checks it against its own trace.
func replaySession(ctx context.Context, st *store.Store, id string) (ReplaySessionResult, error) {
	state, err := st.Load(ctx, id)
	if err != nil {
		return ReplaySessionResult{}, err
	}
	commits, err := st.Commits(ctx, id)
	if err != nil {
		return ReplaySessionResult{}, err
	}
	hashOK, err := st.VerifyHash(ctx, id)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	sr := ReplaySessionResult{
		Session: id,
		Status:  string(state.Status),
		Events:  len(state.Events),
		Commits: len(commits),
	}
	if !hashOK {
		sr.Problems = append(sr.Problems, "stored fingerprint does not match the trace")
	}
	sr.Problems = append(sr.Problems, checkTrace(state.Events)...)
	sr.Problems = append(sr.Problems, checkCommits(commits)...)
	if p := checkSuspension(id, state.Suspension); p != "" {
		sr.Problems = append(sr.Problems, p)
	}
	if p := checkRestore(state); p != "" {
		sr.Problems = append(sr.Problems, p)
	}
	sr.Deterministic = len(sr.Problems) == 0
	return sr, nil
}

// checkTrace verifies that seqs run 1..n and phase entries never regress.
func checkTrace(events []ir.Event) []string {
	var problems []string
	entered := ir.PhasePlanning
	for i, e := range events {
		if want := int64(i + 1); e.Seq != want {
			problems = append(problems, fmt.Sprintf("event %d has seq %d", want, e.Seq))
			break
		}
		if e.Type != ir.EventPhaseEntered {
			continue
		}
		if e.Phase < entered {
			problems = append(problems, fmt.Sprintf("seq %d enters %s after %s", e.Seq, e.Phase, entered))
		}
		entered = e.Phase
	}
	return problems
}

// checkCommits recomputes every commit id from its content.
func checkCommits(commits []ir.Commit) []string {
	var problems []string
	for _, c := range commits {
		id, err := ir.CommitID(ir.CommitProposal{Kind: c.ChangeKind, Message: c.Message, Changes: c.Changes})
		if err != nil {
			problems = append(problems, fmt.Sprintf("commit %s: %v", shortID(c.ID), err))
			continue
		}
		if id != c.ID {
			problems = append(problems, fmt.Sprintf("commit %s does not match its content", shortID(c.ID)))
		}
		if c.TestStatusAtCommit != ir.SummaryAllGreen {
			problems = append(problems, fmt.Sprintf("commit %s recorded with tests %s", shortID(c.ID), c.TestStatusAtCommit))
		}
	}
	return problems
}

func checkSuspension(id string, sus *ir.Suspension) string {
	if sus == nil {
		return ""
	}
	token, err := ir.SuspensionToken(id, *sus)
	if err != nil {
		return fmt.Sprintf("suspension: %v", err)
	}
	if token != sus.Token {
		return "suspension token does not match its content"
	}
	return ""
}

// checkRestore restores the state twice and compares the results.
func checkRestore(state session.State) string {
	first, err := session.Restore(state)
	if err != nil {
		return fmt.Sprintf("restore: %v", err)
	}
	second, err := session.Restore(first.State())
	if err != nil {
		return fmt.Sprintf("second restore: %v", err)
	}
	if !reflect.DeepEqual(first.State(), second.State()) {
		return "restored state differs between replays"
	}
	return ""
}

func (r ReplayResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Replay Summary: %d session(s)\n", r.TotalSessions)
	if r.TotalSessions == 0 {
		b.WriteString("\nNo sessions found in database.")
		return b.String()
	}
	for _, s := range r.Sessions {
		mark := "✓"
		if !s.Deterministic {
			mark = "✗"
		}
		fmt.Fprintf(&b, "\n%s Session: %s (%s)\n", mark, s.Session, s.Status)
		fmt.Fprintf(&b, "  Events: %d, commits: %d\n", s.Events, s.Commits)
		for _, p := range s.Problems {
			fmt.Fprintf(&b, "  - %s\n", p)
		}
	}
	if r.AllDeterministic {
		b.WriteString("\n✓ All sessions verified")
	} else {
		b.WriteString("\n✗ Replay verification failed")
	}
	return b.String()
}
