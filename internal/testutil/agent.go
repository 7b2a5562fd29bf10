package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/pedro/internal/engine"
	"github.com/roach88/pedro/internal/ir"
)

// Reply is one scripted answer of a ScriptedAgent.
type Reply struct {
	Artifact ir.Artifact
	Err      error
}

// ScriptedAgent is an engine.AgentInvoker that answers each capability from
// a queue of scripted replies, in order.
//
// A capability whose queue is empty fails with a permanent error, so a
// scenario that asks for more work than it scripted stops with
// AgentInvocationFailure instead of retrying.
//
// Thread-safety: all methods are safe for concurrent use.
type ScriptedAgent struct {
	mu      sync.Mutex
	replies map[engine.Capability][]Reply
	calls   []engine.AgentRequest
}

// NewScriptedAgent creates an agent with no scripted replies.
func NewScriptedAgent() *ScriptedAgent {
	return &ScriptedAgent{replies: make(map[engine.Capability][]Reply)}
}

// On queues artifacts as replies for capability.
func (a *ScriptedAgent) On(capability engine.Capability, artifacts ...ir.Artifact) *ScriptedAgent {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, art := range artifacts {
		a.replies[capability] = append(a.replies[capability], Reply{Artifact: art})
	}
	return a
}

// Fail queues n failing replies for capability.
func (a *ScriptedAgent) Fail(capability engine.Capability, n int, err error) *ScriptedAgent {
	a.mu.Lock()
	defer a.mu.Unlock()
	for range n {
		a.replies[capability] = append(a.replies[capability], Reply{Err: err})
	}
	return a
}

// Invoke implements engine.AgentInvoker.
func (a *ScriptedAgent) Invoke(_ context.Context, capability engine.Capability, req engine.AgentRequest) (ir.Artifact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, req)
	queue := a.replies[capability]
	if len(queue) == 0 {
		return ir.Artifact{}, backoff.Permanent(fmt.Errorf("no scripted reply left for %s", capability))
	}
	next := queue[0]
	a.replies[capability] = queue[1:]
	return next.Artifact, next.Err
}

// Calls returns every request received, in order.
func (a *ScriptedAgent) Calls() []engine.AgentRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]engine.AgentRequest(nil), a.calls...)
}

// CallsFor returns the requests received for one capability.
func (a *ScriptedAgent) CallsFor(capability engine.Capability) []engine.AgentRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []engine.AgentRequest
	for _, c := range a.calls {
		if c.Capability == capability {
			out = append(out, c)
		}
	}
	return out
}

// Remaining returns how many replies are still queued for capability.
func (a *ScriptedAgent) Remaining(capability engine.Capability) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.replies[capability])
}
