package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxIterations bounds the red/green loop when nothing else is configured.
const DefaultMaxIterations = 25

// IterationQuota tracks red/green loop iterations for one session and
// enforces the iteration limit.
//
// The limit is the configured maximum plus any extra budget an operator
// granted when resuming a stalled session.
type IterationQuota struct {
	limit   int
	current int
}

// NewIterationQuota creates a quota that has already used current iterations.
func NewIterationQuota(limit, current int) *IterationQuota {
	return &IterationQuota{limit: limit, current: current}
}

// Check validates that one more iteration fits in the quota and counts it.
//
// Returns IterationsExceededError if the quota is exhausted; the counter is
// left unchanged in that case.
func (q *IterationQuota) Check(sessionID string) error {
	if q.current >= q.limit {
		return &IterationsExceededError{
			SessionID:  sessionID,
			Iterations: q.current,
			Limit:      q.limit,
		}
	}
	q.current++
	return nil
}

// Current returns the number of iterations used.
func (q *IterationQuota) Current() int {
	return q.current
}

// Limit returns the iteration limit.
func (q *IterationQuota) Limit() int {
	return q.limit
}

// IterationsExceededError is returned when the red/green loop runs out of
// iterations before the acceptance test turns Green.
type IterationsExceededError struct {
	SessionID  string
	Iterations int
	Limit      int
}

// Error implements the error interface.
func (e *IterationsExceededError) Error() string {
	return fmt.Sprintf("session %s: acceptance test still red after %d iterations (limit %d)",
		e.SessionID, e.Iterations, e.Limit)
}

// IsIterationsExceeded returns true if the error is an IterationsExceededError.
func IsIterationsExceeded(err error) bool {
	var ie *IterationsExceededError
	return errors.As(err, &ie)
}
