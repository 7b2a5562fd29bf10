package ir

// ReasonCode is the machine-readable reason a session stopped.
type ReasonCode string

const (
	CodeInconsistentArtifactState ReasonCode = "InconsistentArtifactState"
	CodeAcceptanceTestStalled     ReasonCode = "AcceptanceTestStalled"
	CodeGateEscalation            ReasonCode = "GateEscalation"
	CodeGateViolation             ReasonCode = "GateViolation"
	CodeCommitRejected            ReasonCode = "CommitRejected"
	CodeAmbiguousClassification   ReasonCode = "AmbiguousClassification"
	CodeAgentInvocationFailure    ReasonCode = "AgentInvocationFailure"
	CodeReviewRejected            ReasonCode = "ReviewRejected"
	CodeStoryBelowThreshold       ReasonCode = "StoryBelowThreshold"
	CodeUnexpectedTestOutcome     ReasonCode = "UnexpectedTestOutcome"
)

// Fatal reports whether the code halts the session rather than suspending it.
// Halted sessions need an operator to correct artifacts or budgets before
// they can resume.
func (c ReasonCode) Fatal() bool {
	return c == CodeInconsistentArtifactState || c == CodeAcceptanceTestStalled
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionSuspended SessionStatus = "suspended"
	SessionHalted    SessionStatus = "halted"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further progress is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// Suspension records where and why a session stopped. It is serializable so
// a session can be resumed from persisted state after an arbitrary delay.
type Suspension struct {
	Token     string          `json:"token"`
	Code      ReasonCode      `json:"code"`
	Phase     Phase           `json:"phase"`
	SubStep   SubStep         `json:"sub_step,omitempty"`
	Message   string          `json:"message"`
	Iteration int             `json:"iteration,omitempty"`
	Gate      *GateResult     `json:"gate,omitempty"`
	Proposal  *ProposedChange `json:"proposal,omitempty"`
	Seq       int64           `json:"seq"`
}
