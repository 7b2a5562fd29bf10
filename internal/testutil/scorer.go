package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/pedro/internal/ir"
)

// ScriptedScorer is an engine.QualityScorer that scores stories by name.
// The last assessment of a script repeats.
type ScriptedScorer struct {
	mu      sync.Mutex
	scripts map[string][]ir.QualityAssessment
	err     error
}

// NewScriptedScorer creates a scorer with no scripts.
func NewScriptedScorer() *ScriptedScorer {
	return &ScriptedScorer{scripts: make(map[string][]ir.QualityAssessment)}
}

// On appends an assessment for the story named name.
func (s *ScriptedScorer) On(name string, score, sizeDays int64) *ScriptedScorer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[name] = append(s.scripts[name], ir.QualityAssessment{Score: score, SizeDays: sizeDays})
	return s
}

// FailWith makes every call fail with err.
func (s *ScriptedScorer) FailWith(err error) *ScriptedScorer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Score implements engine.QualityScorer.
func (s *ScriptedScorer) Score(_ context.Context, story ir.Artifact) (ir.QualityAssessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return ir.QualityAssessment{}, s.err
	}
	script := s.scripts[story.Name]
	switch len(script) {
	case 0:
		return ir.QualityAssessment{}, backoff.Permanent(fmt.Errorf("no scripted score for %s", story.Name))
	case 1:
		return script[0], nil
	}
	s.scripts[story.Name] = script[1:]
	return script[0], nil
}
