// Package engine sequences feature-delivery sessions through the workflow
// phases.
//
// A Sequencer resolves where a session starts from its artifacts, then runs
// Planning, TestWriting, DomainImplementation, Integration, Contract, Review
// and Commit in order. Content comes from three collaborators: an
// AgentInvoker that writes stories, tests and code, a QualityScorer for
// stories and a TestRunner that is the only source of test outcomes.
//
// DomainImplementation is a nested red/green loop. Each iteration writes one
// failing unit test, implements exactly that test behind the scope gate,
// turns it Green, re-evaluates the acceptance test and commits. The
// acceptance test may only turn Green after a unit test transition, and the
// loop is bounded by an IterationQuota.
//
// Execution is single-threaded per session. Every step is recorded in the
// session's logical-clock trace, and the loop cursor is part of the session
// state, so a session suspended at any point can be persisted and resumed
// later by a different process.
//
// Recoverable conditions (gate escalations, exhausted revisions, collaborator
// failures) suspend the session and return a nil error. Fatal conditions halt
// it and return a *HaltError.
package engine
