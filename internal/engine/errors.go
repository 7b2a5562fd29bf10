package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/pedro/internal/ir"
)

// ErrCorrectionRefused is returned by Resume when corrected artifacts are
// supplied that the session cannot take.
var ErrCorrectionRefused = errors.New("corrected artifacts refused")

// HaltError is returned when a session halts on a fatal condition.
//
// Fatal conditions are:
//   - InconsistentArtifactState: the artifact history contradicts itself
//   - AcceptanceTestStalled: the red/green loop ran out of iterations
//
// The session keeps its state; an operator must correct artifacts or grant
// more iterations before resuming it.
type HaltError struct {
	// Code identifies the fatal condition.
	Code ir.ReasonCode

	// Phase is where the session halted.
	Phase ir.Phase

	// SessionID identifies the halted session.
	SessionID string

	// Message is a human-readable description.
	Message string

	// Token resumes the session.
	Token string
}

// Error implements the error interface.
func (e *HaltError) Error() string {
	return fmt.Sprintf("%s: %s (session=%s, phase=%s)", e.Code, e.Message, e.SessionID, e.Phase)
}

// IsHalt returns true if the error is a HaltError.
// Uses errors.As to handle wrapped errors.
func IsHalt(err error) bool {
	var he *HaltError
	return errors.As(err, &he)
}

// HaltCode returns the reason code of a HaltError, or "" for other errors.
func HaltCode(err error) ir.ReasonCode {
	var he *HaltError
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

// IsInconsistent returns true if err halted on InconsistentArtifactState.
func IsInconsistent(err error) bool {
	return HaltCode(err) == ir.CodeInconsistentArtifactState
}

// IsStalled returns true if err halted on AcceptanceTestStalled.
func IsStalled(err error) bool {
	return HaltCode(err) == ir.CodeAcceptanceTestStalled
}

func haltErrorFrom(sessionID string, sus ir.Suspension) *HaltError {
	return &HaltError{
		Code:      sus.Code,
		Phase:     sus.Phase,
		SessionID: sessionID,
		Message:   sus.Message,
		Token:     sus.Token,
	}
}
