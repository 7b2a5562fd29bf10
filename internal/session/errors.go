package session

import (
	"errors"
	"fmt"

	"github.com/roach88/pedro/internal/ir"
)

var (
	// ErrPhaseRegression is returned when a transition would move the phase backwards.
	ErrPhaseRegression = errors.New("phase may only move forward")

	// ErrAcceptanceByAssertion is returned when acceptance would turn Green
	// without any unit test transition since the previous evaluation.
	ErrAcceptanceByAssertion = errors.New("acceptance test cannot turn green without a unit test transition")

	// ErrNotSuspended is returned when resuming a session that is not suspended or halted.
	ErrNotSuspended = errors.New("session is not suspended")

	// ErrTerminal is returned when mutating a completed or cancelled session.
	ErrTerminal = errors.New("session is terminal")

	// ErrUnknownArtifact is returned when updating an artifact that was never recorded.
	ErrUnknownArtifact = errors.New("unknown artifact")
)

// PrerequisiteError reports a phase transition blocked by a missing artifact.
type PrerequisiteError struct {
	Phase   ir.Phase
	Missing string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("cannot enter %s: %s", e.Phase, e.Missing)
}

// IsPrerequisiteError reports whether err is a PrerequisiteError.
func IsPrerequisiteError(err error) bool {
	var pe *PrerequisiteError
	return errors.As(err, &pe)
}

// ErrTokenMismatch is returned when a resume token does not match the current suspension.
var ErrTokenMismatch = errors.New("resume token does not match suspension")
