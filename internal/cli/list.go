package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/store"
)

// SessionList is the printable result of the list command.
type SessionList []store.Summary

func (l SessionList) String() string {
	if len(l) == 0 {
		return "no sessions"
	}
	tw := newTable(table.Row{"ID", "Objective", "Status", "Phase", "Seq", "Commits"})
	for _, s := range l {
		phase := s.Phase
		if s.SubStep != "" {
			phase += "/" + s.SubStep
		}
		tw.AppendRow(table.Row{s.ID, s.Objective, s.Status, phase, s.Seq, s.Commits})
	}
	return tw.Render()
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer rootOpts.closeStore(st)

			all, err := st.List(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list sessions", err)
			}
			out := SessionList{}
			for _, s := range all {
				if status == "" || s.Status == ir.SessionStatus(status) {
					out = append(out, s)
				}
			}
			return rootOpts.formatter(cmd).Success(out)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only sessions with this status")

	return cmd
}
