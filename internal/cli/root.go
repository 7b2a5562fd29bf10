package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/config"
	"github.com/roach88/pedro/internal/engine"
	"github.com/roach88/pedro/internal/store"
)

// RootOptions holds global flags and the state shared by all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Config and Logger are set before any subcommand runs.
	Config *config.Config
	Logger *slog.Logger

	collaborators *Collaborators
	ids           engine.IDGenerator
}

// Collaborators are the three external parties a session talks to.
type Collaborators struct {
	Agent  engine.AgentInvoker
	Scorer engine.QualityScorer
	Runner engine.TestRunner
}

// Option configures the root command.
type Option func(*RootOptions)

// WithCollaborators replaces the external-process collaborators.
func WithCollaborators(c Collaborators) Option {
	return func(o *RootOptions) {
		o.collaborators = &c
	}
}

// WithIDGenerator sets the session id generator. Default: UUIDv7Generator.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(o *RootOptions) {
		o.ids = g
	}
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the pedro CLI.
func NewRootCommand(opts ...Option) *cobra.Command {
	o := &RootOptions{ids: engine.UUIDv7Generator{}}
	for _, opt := range opts {
		opt(o)
	}
	d := config.Defaults()

	cmd := &cobra.Command{
		Use:   "pedro",
		Short: "pedro - test-driven feature delivery",
		Long: `pedro drives a feature from objective to commit through planning,
acceptance and unit tests, adapters, review and commit, one gated step at a time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.prepare(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&o.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&o.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&o.ConfigFile, "config", "", "config file (yaml, toml or json)")
	pf.String("db", d.DB, "path to SQLite database")
	pf.Int("max-tdd-iterations", d.MaxTDDIterations, "red/green iterations before a session stalls")
	pf.Int("max-revisions", d.MaxRevisions, "revision requests per piece of work")
	pf.Int64("quality-threshold", d.QualityThreshold, "minimum story quality score")
	pf.Int64("slice-max-days", d.SliceMaxDays, "largest story size in days before slicing")
	pf.Uint("retry-max-tries", d.RetryMaxTries, "attempts per collaborator call")
	pf.String("agent-cmd", "", "command producing artifacts (JSON on stdin/stdout)")
	pf.String("runner-cmd", "", "command running tests (JSON on stdin/stdout)")
	pf.String("scorer-cmd", "", "command scoring stories (JSON on stdin/stdout)")

	cmd.AddCommand(NewStartCommand(o))
	cmd.AddCommand(NewResumeCommand(o))
	cmd.AddCommand(NewStatusCommand(o))
	cmd.AddCommand(NewCancelCommand(o))
	cmd.AddCommand(NewTraceCommand(o))
	cmd.AddCommand(NewListCommand(o))
	cmd.AddCommand(NewValidateCommand(o))
	cmd.AddCommand(NewResolveCommand(o))
	cmd.AddCommand(NewCompileCommand(o))
	cmd.AddCommand(NewInvokeCommand(o))
	cmd.AddCommand(NewReplayCommand(o))
	cmd.AddCommand(NewTestCommand(o))

	return cmd
}

// prepare resolves configuration and logging for the running command.
func (o *RootOptions) prepare(cmd *cobra.Command) error {
	if !slices.Contains(ValidFormats, o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	cfg, err := config.Load(v, o.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Config = cfg

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// openStore opens the configured database.
func (o *RootOptions) openStore() (*store.Store, error) {
	st, err := store.Open(o.Config.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func (o *RootOptions) closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		o.Logger.Error("error closing database", "error", err)
	}
}

// sequencer builds a Sequencer from configuration. Non-zero limits override
// the configured bounds.
func (o *RootOptions) sequencer(maxIterations, maxRevisions int) (*engine.Sequencer, error) {
	c, err := o.resolveCollaborators()
	if err != nil {
		return nil, err
	}
	if maxIterations == 0 {
		maxIterations = o.Config.MaxTDDIterations
	}
	if maxRevisions == 0 {
		maxRevisions = o.Config.MaxRevisions
	}
	return engine.New(c.Agent, c.Scorer, c.Runner,
		engine.WithLogger(o.Logger),
		engine.WithMaxIterations(maxIterations),
		engine.WithMaxRevisions(maxRevisions),
		engine.WithThresholds(o.Config.Thresholds()),
		engine.WithRetry(o.Config.RetryMaxTries, nil),
	), nil
}

func (o *RootOptions) resolveCollaborators() (Collaborators, error) {
	if o.collaborators != nil {
		return *o.collaborators, nil
	}
	for _, c := range []struct{ flag, command string }{
		{"--agent-cmd", o.Config.AgentCmd},
		{"--runner-cmd", o.Config.RunnerCmd},
		{"--scorer-cmd", o.Config.ScorerCmd},
	} {
		if c.command == "" {
			return Collaborators{}, NewExitError(ExitCommandError, fmt.Sprintf("collaborator command not configured (%s)", c.flag))
		}
	}
	return Collaborators{
		Agent:  ExecAgent{Command: o.Config.AgentCmd},
		Scorer: ExecScorer{Command: o.Config.ScorerCmd},
		Runner: ExecRunner{Command: o.Config.RunnerCmd},
	}, nil
}
