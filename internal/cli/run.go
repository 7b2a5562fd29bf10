package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/engine"
	"github.com/roach88/pedro/internal/session"
	"github.com/roach88/pedro/internal/store"
)

// signalContext returns the command context, cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// finish persists the session and reports where it stopped. The session is
// saved even when the run failed, so progress survives an interrupt.
func (o *RootOptions) finish(cmd *cobra.Command, st *store.Store, s *session.Session, out engine.Outcome, runErr error) error {
	if err := st.Save(context.WithoutCancel(cmd.Context()), s.State()); err != nil {
		return WrapExitError(ExitCommandError, "failed to save session", err)
	}
	o.Logger.Debug("session saved", "session", s.ID(), "seq", s.Seq(), "status", s.Status())
	if err := o.formatter(cmd).Success(newOutcomeView(out)); err != nil {
		return err
	}
	return sessionExit(runErr)
}

// sessionExit maps a sequencer error to an exit code.
func sessionExit(err error) error {
	switch {
	case err == nil:
		return nil
	case engine.IsInconsistent(err):
		return WrapExitError(ExitCommandError, "session halted", err)
	case engine.IsStalled(err):
		return WrapExitError(ExitFailure, "session halted", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return WrapExitError(ExitFailure, "interrupted", err)
	case session.IsPrerequisiteError(err),
		errors.Is(err, session.ErrTokenMismatch),
		errors.Is(err, session.ErrNotSuspended),
		errors.Is(err, session.ErrTerminal),
		errors.Is(err, engine.ErrCorrectionRefused):
		return WrapExitError(ExitCommandError, "cannot continue session", err)
	}
	return WrapExitError(ExitFailure, "session failed", err)
}

// loadSession restores a stored session.
func loadSession(cmd *cobra.Command, st *store.Store, id string) (*session.Session, error) {
	if id == "" {
		return nil, NewExitError(ExitCommandError, "--session is required")
	}
	state, err := st.Load(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, WrapExitError(ExitCommandError, "unknown session "+id, err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load session", err)
	}
	s, err := session.Restore(state)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to restore session", err)
	}
	return s, nil
}
