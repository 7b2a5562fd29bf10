package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/resolver"
	"github.com/roach88/pedro/internal/session"
)

// Resolution is the entry point a manifest would start at.
type Resolution struct {
	Manifest string        `json:"manifest"`
	Entry    ir.EntryPoint `json:"entry"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%s starts at %s (rule %s)", r.Manifest, r.Entry, r.Entry.Rule)
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <manifest.cue>",
		Short: "Show where a manifest's session would start",
		Long: `Run entry point resolution over a manifest's artifacts without
starting a session. An explicit entry in the manifest is reported as is.

Exit status is 2 when the artifacts are inconsistent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := LoadManifest(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid manifest", err)
			}
			res := Resolution{Manifest: args[0]}
			if m.Entry != nil {
				res.Entry = *m.Entry
				return rootOpts.formatter(cmd).Success(res)
			}
			r := resolver.New(rootOpts.Config.Thresholds())
			entry, err := r.Resolve(session.NewSnapshot(m.Artifacts...))
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot resolve entry point", err)
			}
			res.Entry = entry
			return rootOpts.formatter(cmd).Success(res)
		},
	}

	return cmd
}
