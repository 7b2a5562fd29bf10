package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Session string
	Type    string // optional event type or type prefix, e.g. "gate"
	Phase   string // optional phase filter
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  string      `json:"session"`
	Timeline []ir.Event  `json:"timeline"`
	Commits  []ir.Commit `json:"commits"`
	Stats    TraceStats  `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	TestRuns    int `json:"test_runs"`
	GateResults int `json:"gate_results"`
	Commits     int `json:"commits"`
	Rejections  int `json:"rejections"`
	Suspensions int `json:"suspensions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the event history of a session",
		Long: `Show every event a session recorded, in order: phase entries,
artifacts, test runs, gate results, commits and suspensions.

Examples:
  pedro trace --session 0192...
  pedro trace --session 0192... --type gate
  pedro trace --session 0192... --phase DomainImplementation --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only events of this type or type prefix")
	cmd.Flags().StringVar(&opts.Phase, "phase", "", "only events recorded in this phase")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	var phase *ir.Phase
	if opts.Phase != "" {
		p, err := ir.ParsePhase(opts.Phase)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --phase", err)
		}
		phase = &p
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	ctx := cmd.Context()
	if _, err := st.Load(ctx, opts.Session); errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, "unknown session "+opts.Session, err)
	} else if err != nil {
		return WrapExitError(ExitCommandError, "failed to load session", err)
	}
	events, err := st.QueryEvents(ctx, store.EventQuery{Session: opts.Session, Type: opts.Type, Phase: phase})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	commits, err := st.Commits(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read commits", err)
	}

	result := buildTrace(opts.Session, events, commits)
	return opts.formatter(cmd).Success(result)
}

// buildTrace counts what happened in a timeline.
func buildTrace(id string, events []ir.Event, commits []ir.Commit) TraceResult {
	result := TraceResult{Session: id, Timeline: events, Commits: commits}
	if result.Timeline == nil {
		result.Timeline = []ir.Event{}
	}
	if result.Commits == nil {
		result.Commits = []ir.Commit{}
	}
	for _, e := range events {
		switch e.Type {
		case ir.EventTestRun:
			result.Stats.TestRuns++
		case ir.EventGateEvaluated:
			result.Stats.GateResults++
		case ir.EventCommitRecorded:
			result.Stats.Commits++
		case ir.EventCommitRejected:
			result.Stats.Rejections++
		case ir.EventSessionSuspended, ir.EventSessionHalted:
			result.Stats.Suspensions++
		}
	}
	result.Stats.TotalEvents = len(result.Timeline)
	return result
}

func (r TraceResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trace for session: %s\n\n", r.Session)

	if len(r.Timeline) == 0 {
		b.WriteString("(no events)\n")
	} else {
		tw := newTable(table.Row{"Seq", "Type", "Phase", "Details"})
		for _, e := range r.Timeline {
			tw.AppendRow(table.Row{e.Seq, e.Type, e.Phase, formatAttrs(e.Attrs)})
		}
		b.WriteString(tw.Render() + "\n")
	}

	if len(r.Commits) > 0 {
		tw := newTable(table.Row{"Seq", "ID", "Kind", "Message"})
		for _, c := range r.Commits {
			tw.AppendRow(table.Row{c.Seq, shortID(c.ID), c.ChangeKind, c.Message})
		}
		b.WriteString("\nCommits:\n" + tw.Render() + "\n")
	}

	s := r.Stats
	fmt.Fprintf(&b, "\n%d events: %d test runs, %d gate results, %d commits, %d rejections, %d suspensions",
		s.TotalEvents, s.TestRuns, s.GateResults, s.Commits, s.Rejections, s.Suspensions)
	return b.String()
}

// formatAttrs renders attrs as sorted key=value pairs.
func formatAttrs(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + attrs[k]
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
