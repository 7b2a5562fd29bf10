package ir

// Event types written to the session trace.
const (
	EventSessionStarted   = "session.started"
	EventPhaseEntered     = "phase.entered"
	EventArtifactRecorded = "artifact.recorded"
	EventTestRun          = "test.run"
	EventGateEvaluated    = "gate.evaluated"
	EventCommitRecorded   = "commit.recorded"
	EventCommitRejected   = "commit.rejected"
	EventSessionSuspended = "session.suspended"
	EventSessionHalted    = "session.halted"
	EventSessionResumed   = "session.resumed"
	EventSessionCompleted = "session.completed"
	EventSessionCancelled = "session.cancelled"
)

// Event is one entry of the totally ordered session trace.
type Event struct {
	Seq   int64             `json:"seq"`
	Type  string            `json:"type"`
	Phase Phase             `json:"phase"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Canonical returns the event as a map suitable for MarshalCanonical.
func (e Event) Canonical() map[string]any {
	m := map[string]any{
		"seq":   e.Seq,
		"type":  e.Type,
		"phase": e.Phase.String(),
	}
	if len(e.Attrs) > 0 {
		attrs := make(map[string]any, len(e.Attrs))
		for k, v := range e.Attrs {
			attrs[k] = v
		}
		m["attrs"] = attrs
	}
	return m
}
