package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pedro/internal/engine"
	"github.com/roach88/pedro/internal/ir"
)

// Scenario defines a session run against scripted collaborators. The
// sequencer runs once from the session's entry point, then once per resume
// step; each run is checked against its expectation.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is the session to start.
	Session SessionSpec `yaml:"session"`

	// Agent, Runner and Scorer script the collaborators.
	Agent  []AgentStep  `yaml:"agent,omitempty"`
	Runner []RunnerStep `yaml:"runner,omitempty"`
	Scorer []ScorerStep `yaml:"scorer,omitempty"`

	// Expect checks where the first run stopped.
	Expect Expectation `yaml:"expect"`

	// Resume continues the session after the first run, in order.
	Resume []ResumeStep `yaml:"resume,omitempty"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SessionSpec describes the session under test.
type SessionSpec struct {
	// ID defaults to "scenario".
	ID        string         `yaml:"id,omitempty"`
	Objective string         `yaml:"objective"`
	Include   []string       `yaml:"include,omitempty"`
	Exclude   []string       `yaml:"exclude,omitempty"`
	Entry     string         `yaml:"entry,omitempty"`
	SubStep   string         `yaml:"sub_step,omitempty"`
	Artifacts []ArtifactSpec `yaml:"artifacts,omitempty"`

	MaxTDDIterations int `yaml:"max_tdd_iterations,omitempty"`
	MaxRevisions     int `yaml:"max_revisions,omitempty"`
}

// ArtifactSpec is an artifact in YAML form.
//
// Template fills in the rest of a common artifact shape:
//   - "test": a test with the profile its kind classifies as
//   - "impl": an implementation tracing to the objective that adds one
//     method exercised by Target
//   - "refactoring": a structural change with no additions
//
// Explicit fields override the template.
type ArtifactSpec struct {
	Kind         string       `yaml:"kind"`
	Name         string       `yaml:"name"`
	Template     string       `yaml:"template,omitempty"`
	Target       string       `yaml:"target,omitempty"`
	Status       string       `yaml:"status,omitempty"`
	QualityScore *int64       `yaml:"quality_score,omitempty"`
	SizeDays     *int64       `yaml:"size_days,omitempty"`
	Profile      *ProfileSpec `yaml:"profile,omitempty"`
	Change       *ChangeSpec  `yaml:"change,omitempty"`
	Content      string       `yaml:"content,omitempty"`
}

// ProfileSpec is a test profile in YAML form.
type ProfileSpec struct {
	Scope          string   `yaml:"scope"`
	Doubles        []string `yaml:"doubles,omitempty"`
	RealBoundaries []string `yaml:"real_boundaries,omitempty"`
	Adapters       []string `yaml:"adapters,omitempty"`
}

// ChangeSpec is a proposed change in YAML form. Fields left empty keep the
// template's values; Additions are appended.
type ChangeSpec struct {
	Summary            string         `yaml:"summary,omitempty"`
	Kind               string         `yaml:"kind,omitempty"`
	TracesTo           []string       `yaml:"traces_to,omitempty"`
	TargetTest         string         `yaml:"target_test,omitempty"`
	Additions          []AdditionSpec `yaml:"additions,omitempty"`
	SimplerAlternative string         `yaml:"simpler_alternative,omitempty"`
}

// AdditionSpec is one addition of a proposed change.
type AdditionSpec struct {
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	ExercisedBy []string `yaml:"exercised_by,omitempty"`
}

// AgentStep queues agent replies for one capability: Fail errors first,
// then Artifacts.
type AgentStep struct {
	Capability string         `yaml:"capability"`
	Fail       int            `yaml:"fail,omitempty"`
	Artifacts  []ArtifactSpec `yaml:"artifacts,omitempty"`
}

// RunnerStep scripts the outcomes of one test ref ("Kind/name"). The last
// outcome repeats. In a resume step the script replaces the previous one.
type RunnerStep struct {
	Test     string   `yaml:"test"`
	Outcomes []string `yaml:"outcomes"`
	Fail     int      `yaml:"fail,omitempty"`
}

// ScorerStep scripts one assessment of a story.
type ScorerStep struct {
	Story    string `yaml:"story"`
	Score    int64  `yaml:"score"`
	SizeDays int64  `yaml:"size_days"`
}

// ResumeStep resumes the session with a decision and optional new scripts.
type ResumeStep struct {
	Include    []string     `yaml:"include,omitempty"`
	Exclude    []string     `yaml:"exclude,omitempty"`
	Decision   string       `yaml:"decision,omitempty"`
	Iterations int          `yaml:"iterations,omitempty"`
	Discard    bool         `yaml:"discard,omitempty"`
	Agent      []AgentStep  `yaml:"agent,omitempty"`
	Runner     []RunnerStep `yaml:"runner,omitempty"`
	Expect     Expectation  `yaml:"expect"`
}

// Expectation checks where a run stopped. Empty fields are not checked.
type Expectation struct {
	Status  string `yaml:"status"`
	Phase   string `yaml:"phase,omitempty"`
	SubStep string `yaml:"sub_step,omitempty"`
	Code    string `yaml:"code,omitempty"`
	Commits *int   `yaml:"commits,omitempty"`
	Error   string `yaml:"error,omitempty"`
}

// Assertion validates the final trace or session state.
type Assertion struct {
	// Type selects the check:
	//   - "event_contains": an event of Event type whose attrs include Attrs
	//   - "event_order": first occurrences of Events appear in order
	//   - "event_count": Event occurs exactly Count times
	//   - "commit_contains": a commit matching Kind, Phase and Message
	//   - "test_outcome": Test's last recorded outcome is Outcome
	Type string `yaml:"type"`

	Event   string            `yaml:"event,omitempty"`
	Attrs   map[string]string `yaml:"attrs,omitempty"`
	Events  []string          `yaml:"events,omitempty"`
	Count   *int              `yaml:"count,omitempty"`
	Kind    string            `yaml:"kind,omitempty"`
	Phase   string            `yaml:"phase,omitempty"`
	Message string            `yaml:"message,omitempty"`
	Test    string            `yaml:"test,omitempty"`
	Outcome string            `yaml:"outcome,omitempty"`
}

// Assertion type constants.
const (
	AssertEventContains  = "event_contains"
	AssertEventOrder     = "event_order"
	AssertEventCount     = "event_count"
	AssertCommitContains = "commit_contains"
	AssertTestOutcome    = "test_outcome"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Session.Objective == "" {
		return fmt.Errorf("session.objective is required")
	}
	if s.Session.SubStep != "" && s.Session.Entry == "" {
		return fmt.Errorf("session.sub_step requires session.entry")
	}
	if s.Session.Entry != "" {
		if _, err := ir.ParsePhase(s.Session.Entry); err != nil {
			return fmt.Errorf("session.entry: %w", err)
		}
	}
	for i, a := range s.Session.Artifacts {
		if _, err := a.Artifact(); err != nil {
			return fmt.Errorf("session.artifacts[%d]: %w", i, err)
		}
	}
	if err := validateScripts("", s.Agent, s.Runner); err != nil {
		return err
	}
	for i, sc := range s.Scorer {
		if sc.Story == "" {
			return fmt.Errorf("scorer[%d]: story is required", i)
		}
	}
	if err := validateExpectation("expect", s.Expect); err != nil {
		return err
	}
	for i, r := range s.Resume {
		prefix := fmt.Sprintf("resume[%d].", i)
		if r.Iterations < 0 {
			return fmt.Errorf("%siterations must be non-negative", prefix)
		}
		if err := validateScripts(prefix, r.Agent, r.Runner); err != nil {
			return err
		}
		if err := validateExpectation(prefix+"expect", r.Expect); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateScripts(prefix string, agent []AgentStep, runner []RunnerStep) error {
	known := engine.Capabilities()
	for i, step := range agent {
		if !slices.Contains(known, engine.Capability(step.Capability)) {
			return fmt.Errorf("%sagent[%d]: unknown capability %q", prefix, i, step.Capability)
		}
		if step.Fail < 0 {
			return fmt.Errorf("%sagent[%d]: fail must be non-negative", prefix, i)
		}
		for j, a := range step.Artifacts {
			if _, err := a.Artifact(); err != nil {
				return fmt.Errorf("%sagent[%d].artifacts[%d]: %w", prefix, i, j, err)
			}
		}
	}
	for i, step := range runner {
		if step.Test == "" {
			return fmt.Errorf("%srunner[%d]: test is required", prefix, i)
		}
		if len(step.Outcomes) == 0 && step.Fail == 0 {
			return fmt.Errorf("%srunner[%d]: outcomes or fail is required", prefix, i)
		}
		for _, o := range step.Outcomes {
			if _, err := ir.ParseTestOutcome(o); err != nil {
				return fmt.Errorf("%srunner[%d]: %w", prefix, i, err)
			}
		}
	}
	return nil
}

func validateExpectation(field string, e Expectation) error {
	if e.Status == "" {
		return fmt.Errorf("%s.status is required", field)
	}
	switch ir.SessionStatus(e.Status) {
	case ir.SessionRunning, ir.SessionSuspended, ir.SessionHalted, ir.SessionCompleted, ir.SessionCancelled:
	default:
		return fmt.Errorf("%s.status: unknown status %q", field, e.Status)
	}
	if e.Phase != "" {
		if _, err := ir.ParsePhase(e.Phase); err != nil {
			return fmt.Errorf("%s.phase: %w", field, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_contains", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertCommitContains:
		if a.Kind == "" && a.Phase == "" && a.Message == "" {
			return fmt.Errorf("assertions[%d]: kind, phase or message is required for commit_contains", index)
		}
	case AssertTestOutcome:
		if a.Test == "" || a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: test and outcome are required for test_outcome", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
