package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/engine"
)

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a session",
		Long: `Cancel a session. Any pending proposal is dropped; commits and
recorded artifacts are kept. A cancelled session cannot be resumed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer rootOpts.closeStore(st)

			s, err := loadSession(cmd, st, id)
			if err != nil {
				return err
			}
			// Cancelling needs no collaborators.
			q := engine.New(nil, nil, nil, engine.WithLogger(rootOpts.Logger))
			out, cancelErr := q.Cancel(s)
			if cancelErr != nil {
				return sessionExit(cancelErr)
			}
			return rootOpts.finish(cmd, st, s, out, nil)
		},
	}

	cmd.Flags().StringVar(&id, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}
