package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/pedro/internal/ir"
)

// ScriptedRunner is an engine.TestRunner that reports scripted outcomes per
// test ref ("Kind/name"). The last outcome of a script repeats, so a test
// that turned Green stays Green.
//
// Thread-safety: all methods are safe for concurrent use.
type ScriptedRunner struct {
	mu       sync.Mutex
	outcomes map[string][]ir.TestOutcome
	failures map[string]int
	runs     []string
}

// NewScriptedRunner creates a runner with no scripts.
func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{
		outcomes: make(map[string][]ir.TestOutcome),
		failures: make(map[string]int),
	}
}

// On appends outcomes to the script of ref.
func (r *ScriptedRunner) On(ref string, outcomes ...ir.TestOutcome) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[ref] = append(r.outcomes[ref], outcomes...)
	return r
}

// Set replaces the script of ref.
func (r *ScriptedRunner) Set(ref string, outcomes ...ir.TestOutcome) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[ref] = append([]ir.TestOutcome(nil), outcomes...)
	return r
}

// Fail makes the next n runs of ref return an error.
func (r *ScriptedRunner) Fail(ref string, n int) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[ref] += n
	return r
}

// Run implements engine.TestRunner.
func (r *ScriptedRunner) Run(_ context.Context, test ir.Artifact) (ir.TestOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := test.Ref()
	r.runs = append(r.runs, ref)
	if r.failures[ref] > 0 {
		r.failures[ref]--
		return "", fmt.Errorf("runner unavailable for %s", ref)
	}
	script := r.outcomes[ref]
	switch len(script) {
	case 0:
		return "", backoff.Permanent(fmt.Errorf("no scripted outcome for %s", ref))
	case 1:
		return script[0], nil
	}
	r.outcomes[ref] = script[1:]
	return script[0], nil
}

// Runs returns the refs run so far, in order.
func (r *ScriptedRunner) Runs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runs...)
}

// RunCount returns how often ref was run.
func (r *ScriptedRunner) RunCount(ref string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, run := range r.runs {
		if run == ref {
			n++
		}
	}
	return n
}
