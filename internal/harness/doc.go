// Package harness runs YAML session scenarios against the real sequencer.
//
// Each scenario seeds a session, scripts the agent, test runner and quality
// scorer, starts the session and then resumes it step by step. Every run is
// checked against an expectation; the persisted trace is checked against
// assertions and, optionally, a golden snapshot.
//
// # Scenario Format
//
//	name: red_green_loop
//	description: "Three unit tests turn the acceptance test Green"
//	session:
//	  objective: let customers check out a cart
//	  artifacts:
//	    - { kind: UserStory, name: checkout-story, status: Approved, quality_score: 92, size_days: 3 }
//	    - { kind: ArchitecturePlan, name: hexagonal, status: Approved }
//	agent:
//	  - capability: acceptance-test
//	    artifacts:
//	      - { kind: AcceptanceTest, name: checkout, template: test }
//	runner:
//	  - test: AcceptanceTest/checkout
//	    outcomes: [Red, Red, Green]
//	expect:
//	  status: suspended
//	  phase: Integration
//	  commits: 4
//	resume:
//	  - include: [redis-cache]
//	    expect: { status: completed }
//	assertions:
//	  - type: event_contains
//	    event: gate.evaluated
//	    attrs: { verdict: Modify }
//	  - type: commit_contains
//	    message: "acceptance test passes"
//
// Collaborators that run out of script fail permanently, so a scenario stops
// where its script ends with an AgentInvocationFailure suspension.
package harness
