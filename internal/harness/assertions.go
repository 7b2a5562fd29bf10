package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/pedro/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Type, event.Phase)
		}
	}

	return buf.String()
}

// assertEventContains checks that some event of the given type carries all
// expected attrs (subset match).
func assertEventContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == assertion.Event && matchAttrs(event.Attrs, assertion.Attrs) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertEventContains,
		Expected: fmt.Sprintf("event %s with attrs %v", assertion.Event, assertion.Attrs),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertEventOrder checks that the first occurrence of each event type
// appears in the specified order. Intervening events are allowed.
func assertEventOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Type]; !seen {
			positions[event.Type] = i + 1
		}
	}

	for _, typ := range assertion.Events {
		if positions[typ] == 0 {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("all events present: %v", assertion.Events),
				Actual:   fmt.Sprintf("missing event: %s", typ),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Events); i++ {
		prev := assertion.Events[i-1]
		curr := assertion.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertEventCount checks that the event type occurs exactly Count times,
// counting only events whose attrs match when Attrs is set.
func assertEventCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == assertion.Event && matchAttrs(event.Attrs, assertion.Attrs) {
			count++
		}
	}

	if count != *assertion.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertCommitContains checks that some commit matches every set field.
// Message matches as a substring.
func assertCommitContains(commits []ir.Commit, assertion Assertion) error {
	for _, c := range commits {
		if assertion.Kind != "" && string(c.ChangeKind) != assertion.Kind {
			continue
		}
		if assertion.Phase != "" {
			p, err := ir.ParsePhase(assertion.Phase)
			if err != nil || p != c.Phase {
				continue
			}
		}
		if assertion.Message != "" && !strings.Contains(c.Message, assertion.Message) {
			continue
		}
		return nil
	}

	got := make([]string, 0, len(commits))
	for _, c := range commits {
		got = append(got, fmt.Sprintf("[%s] %s: %s", c.ChangeKind, c.Phase, c.Message))
	}
	return &AssertionError{
		Type:     AssertCommitContains,
		Expected: fmt.Sprintf("commit kind=%q phase=%q message~%q", assertion.Kind, assertion.Phase, assertion.Message),
		Actual:   fmt.Sprintf("commits %v", got),
	}
}

// assertTestOutcome checks the last recorded outcome of a test.
func assertTestOutcome(tests map[string]ir.TestOutcome, assertion Assertion) error {
	got, ok := tests[assertion.Test]
	if !ok {
		return &AssertionError{
			Type:     AssertTestOutcome,
			Expected: fmt.Sprintf("%s to be %s", assertion.Test, assertion.Outcome),
			Actual:   "test not tracked",
		}
	}
	want, err := ir.ParseTestOutcome(assertion.Outcome)
	if err != nil {
		return err
	}
	if got != want {
		return &AssertionError{
			Type:     AssertTestOutcome,
			Expected: fmt.Sprintf("%s to be %s", assertion.Test, want),
			Actual:   string(got),
		}
	}
	return nil
}

// matchAttrs checks if actual attrs contain all expected attrs (subset match).
func matchAttrs(actual, expected map[string]string) bool {
	for key, want := range expected {
		if got, ok := actual[key]; !ok || got != want {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEventContains:
			err = assertEventContains(result.Trace, assertion)
		case AssertEventOrder:
			err = assertEventOrder(result.Trace, assertion)
		case AssertEventCount:
			if assertion.Count == nil {
				err = fmt.Errorf("assertion[%d]: event_count requires count", i)
			} else {
				err = assertEventCount(result.Trace, assertion)
			}
		case AssertCommitContains:
			err = assertCommitContains(result.Commits, assertion)
		case AssertTestOutcome:
			err = assertTestOutcome(result.Tests, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
