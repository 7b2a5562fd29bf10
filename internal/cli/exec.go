package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/pedro/internal/engine"
	"github.com/roach88/pedro/internal/ir"
)

// ExecAgent is an engine.AgentInvoker backed by an external command.
//
// The command receives the engine.AgentRequest as JSON on stdin, with
// PEDRO_CAPABILITY set in its environment, and must print one artifact as
// JSON on stdout.
type ExecAgent struct {
	Command string
}

// Invoke implements engine.AgentInvoker.
func (a ExecAgent) Invoke(ctx context.Context, capability engine.Capability, req engine.AgentRequest) (ir.Artifact, error) {
	var out ir.Artifact
	err := runJSON(ctx, a.Command, []string{"PEDRO_CAPABILITY=" + string(capability)}, req, &out)
	return out, err
}

// ExecScorer is an engine.QualityScorer backed by an external command. The
// story artifact is written to stdin; stdout must hold
// {"score": n, "size_days": n}.
type ExecScorer struct {
	Command string
}

// Score implements engine.QualityScorer.
func (s ExecScorer) Score(ctx context.Context, story ir.Artifact) (ir.QualityAssessment, error) {
	var out ir.QualityAssessment
	err := runJSON(ctx, s.Command, nil, story, &out)
	return out, err
}

// ExecRunner is an engine.TestRunner backed by an external command. The test
// artifact is written to stdin; stdout must hold {"outcome": "Red|Green|Error"}.
type ExecRunner struct {
	Command string
}

type runResult struct {
	Outcome string `json:"outcome"`
}

// Run implements engine.TestRunner.
func (r ExecRunner) Run(ctx context.Context, test ir.Artifact) (ir.TestOutcome, error) {
	var res runResult
	if err := runJSON(ctx, r.Command, nil, test, &res); err != nil {
		return "", err
	}
	outcome, err := ir.ParseTestOutcome(res.Outcome)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("runner output: %w", err))
	}
	return outcome, nil
}

// runJSON runs command with in encoded on stdin and decodes stdout into out.
// A non-zero exit is retryable; unreadable output is not.
func runJSON(ctx context.Context, command string, env []string, in, out any) error {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return backoff.Permanent(errors.New("empty collaborator command"))
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("encode request: %w", err))
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return backoff.Permanent(fmt.Errorf("%s: decode output: %w", argv[0], err))
	}
	return nil
}
