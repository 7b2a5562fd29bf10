package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/compiler"
	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
	"github.com/roach88/pedro/internal/store"
)

// StartOptions holds flags for the start command.
type StartOptions struct {
	*RootOptions
	Objective string
	Entry     string
	SubStep   string
	Manifest  string
	Include   []string
	Exclude   []string
}

// NewStartCommand creates the start command.
func NewStartCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StartOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a feature delivery session",
		Long: `Start a session for an objective and run it until it needs input,
halts or completes.

Without --entry the phase is chosen from the artifacts in the manifest.
Exit status is 0 when the session suspends or completes, 2 when the
artifacts are inconsistent and 1 when the red/green loop stalls.

Examples:
  pedro start --objective "add checkout discounts"
  pedro start --manifest ./session.cue --exclude redis
  pedro start --objective "price orders" --entry TestWriting`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Objective, "objective", "", "what the feature should achieve")
	cmd.Flags().StringVar(&opts.Entry, "entry", "", "phase to start in, skipping resolution")
	cmd.Flags().StringVar(&opts.SubStep, "sub-step", "", "planning sub-step when --entry is Planning")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "CUE session manifest")
	cmd.Flags().StringSliceVar(&opts.Include, "include", nil, "terms inside the scope boundary")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "terms outside the scope boundary")

	return cmd
}

func runStart(opts *StartOptions, cmd *cobra.Command) error {
	m, err := opts.manifest()
	if err != nil {
		return err
	}
	entry, err := opts.entryPoint(m.Entry)
	if err != nil {
		return err
	}
	id := m.ID
	if id == "" {
		id = opts.ids.Generate()
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	if _, err := st.Load(cmd.Context(), id); err == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("session %s already exists", id))
	} else if !errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, "failed to check session", err)
	}

	s, err := session.New(id, m.Objective, m.Scope, m.Artifacts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid session", err)
	}
	q, err := opts.sequencer(m.Limits.MaxTDDIterations, m.Limits.MaxRevisions)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	out, runErr := q.Start(ctx, s, entry)
	return opts.finish(cmd, st, s, out, runErr)
}

// manifest merges the manifest file, if any, with command-line flags.
func (opts *StartOptions) manifest() (*compiler.Manifest, error) {
	m := &compiler.Manifest{}
	if opts.Manifest != "" {
		loaded, err := LoadManifest(opts.Manifest)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid manifest", err)
		}
		m = loaded
	}
	if opts.Objective != "" {
		m.Objective = opts.Objective
	}
	if m.Objective == "" {
		return nil, NewExitError(ExitCommandError, "an objective is required (--objective or manifest)")
	}
	m.Scope = m.Scope.Apply(ir.ScopeDecision{Include: opts.Include, Exclude: opts.Exclude})
	return m, nil
}

// entryPoint returns the explicit entry point, or nil to resolve one.
func (opts *StartOptions) entryPoint(fromManifest *ir.EntryPoint) (*ir.EntryPoint, error) {
	if opts.Entry == "" {
		if opts.SubStep != "" {
			return nil, NewExitError(ExitCommandError, "--sub-step requires --entry")
		}
		return fromManifest, nil
	}
	phase, err := ir.ParsePhase(opts.Entry)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --entry", err)
	}
	return &ir.EntryPoint{Phase: phase, SubStep: ir.SubStep(opts.SubStep), Rule: "explicit"}, nil
}
