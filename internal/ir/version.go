package ir

// Version constants for the persisted session schema and the engine.
const (
	// StateVersion is the version of the serialized session state.
	StateVersion = "1"

	// EngineVersion is the pedro engine version.
	EngineVersion = "0.1.0"
)
