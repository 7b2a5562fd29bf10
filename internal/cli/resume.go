package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/engine"
	"github.com/roach88/pedro/internal/ir"
)

// ResumeOptions holds flags for the resume command.
type ResumeOptions struct {
	*RootOptions
	Session    string
	Token      string
	Decision   string
	Include    []string
	Exclude    []string
	Iterations int
	Discard    bool
	Artifacts  []string
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResumeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a suspended or halted session",
		Long: `Resume a session from where it stopped.

A scope decision (--include/--exclude) answers a gate escalation; --discard
drops the pending proposal so the agent is asked again. A stalled session
needs --iterations to continue. A session halted on inconsistent artifacts
takes corrected artifacts with --artifact, one JSON artifact per file, and
resolves its entry point again. Sessions interrupted mid-run continue
without a decision.

Examples:
  pedro resume --session 0192... --exclude redis-cache --discard
  pedro resume --session 0192... --iterations 5
  pedro resume --session 0192... --artifact acceptance.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (required)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "suspension token to check before resuming")
	cmd.Flags().StringVar(&opts.Decision, "decision", "", "note recorded with the scope decision")
	cmd.Flags().StringSliceVar(&opts.Include, "include", nil, "terms to add to the scope boundary")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "terms to exclude from the scope boundary")
	cmd.Flags().IntVar(&opts.Iterations, "iterations", 0, "extra red/green iterations")
	cmd.Flags().BoolVar(&opts.Discard, "discard", false, "drop the pending proposal")
	cmd.Flags().StringArrayVar(&opts.Artifacts, "artifact", nil, "JSON file with a corrected artifact (repeatable)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runResume(opts *ResumeOptions, cmd *cobra.Command) error {
	if opts.Iterations < 0 {
		return NewExitError(ExitCommandError, "--iterations must not be negative")
	}
	corrections, err := readArtifacts(opts.Artifacts)
	if err != nil {
		return err
	}
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	s, err := loadSession(cmd, st, opts.Session)
	if err != nil {
		return err
	}
	q, err := opts.sequencer(0, 0)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	var out engine.Outcome
	if s.Status() == ir.SessionRunning && len(corrections) > 0 {
		return NewExitError(ExitCommandError, "--artifact only applies to a session halted on inconsistent artifacts")
	}
	if s.Status() == ir.SessionRunning {
		opts.Logger.Info("continuing interrupted session", "session", s.ID(), "phase", s.Phase())
		out, err = q.Run(ctx, s)
	} else {
		out, err = q.Resume(ctx, s, engine.ResumeInput{
			Token: opts.Token,
			Decision: ir.ScopeDecision{
				Include: opts.Include,
				Exclude: opts.Exclude,
				Note:    opts.Decision,
			},
			ExtraIterations: opts.Iterations,
			Discard:         opts.Discard,
			Artifacts:       corrections,
		})
	}
	return opts.finish(cmd, st, s, out, err)
}

func readArtifacts(paths []string) ([]ir.Artifact, error) {
	var out []ir.Artifact
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read artifact", err)
		}
		var a ir.Artifact
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid artifact JSON in "+path, err)
		}
		out = append(out, a)
	}
	return out, nil
}
