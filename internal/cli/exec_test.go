package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pedro/internal/engine"
	"github.com/roach88/pedro/internal/ir"
)

// script writes an executable shell script and returns its path.
func script(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "collaborator.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func isPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}

func TestExecAgent(t *testing.T) {
	agent := ExecAgent{Command: script(t, `cat >/dev/null
printf '{"kind":"UserStory","name":"%s","status":"Pending"}' "$PEDRO_CAPABILITY"`)}

	a, err := agent.Invoke(context.Background(), engine.CapUserStory, engine.AgentRequest{Objective: "x"})
	require.NoError(t, err)
	assert.Equal(t, ir.KindUserStory, a.Kind)
	assert.Equal(t, "user-story", a.Name)
}

func TestExecAgent_EchoesRequest(t *testing.T) {
	// The request arrives on stdin.
	agent := ExecAgent{Command: script(t, `grep -q '"objective":"price orders"' && echo '{"kind":"ArchitecturePlan","name":"ok"}'`)}

	a, err := agent.Invoke(context.Background(), engine.CapArchitecturePlan, engine.AgentRequest{Objective: "price orders"})
	require.NoError(t, err)
	assert.Equal(t, "ok", a.Name)
}

func TestExecScorer(t *testing.T) {
	scorer := ExecScorer{Command: script(t, `cat >/dev/null; echo '{"score": 91, "size_days": 4}'`)}

	qa, err := scorer.Score(context.Background(), ir.Artifact{Kind: ir.KindUserStory, Name: "s"})
	require.NoError(t, err)
	assert.Equal(t, ir.QualityAssessment{Score: 91, SizeDays: 4}, qa)
}

func TestExecRunner(t *testing.T) {
	runner := ExecRunner{Command: script(t, `cat >/dev/null; echo '{"outcome": "Green"}'`)}
	outcome, err := runner.Run(context.Background(), ir.Artifact{Kind: ir.KindUnitTest, Name: "t"})
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeGreen, outcome)

	bad := ExecRunner{Command: script(t, `cat >/dev/null; echo '{"outcome": "Blue"}'`)}
	_, err = bad.Run(context.Background(), ir.Artifact{Kind: ir.KindUnitTest, Name: "t"})
	require.Error(t, err)
	assert.True(t, isPermanent(err))
}

func TestRunJSON_Failures(t *testing.T) {
	var out map[string]any

	err := runJSON(context.Background(), "   ", nil, struct{}{}, &out)
	require.Error(t, err)
	assert.True(t, isPermanent(err))

	// A failing command may succeed on retry.
	err = runJSON(context.Background(), script(t, `echo "rate limited" >&2; exit 3`), nil, struct{}{}, &out)
	require.Error(t, err)
	assert.False(t, isPermanent(err))
	assert.Contains(t, err.Error(), "rate limited")

	err = runJSON(context.Background(), script(t, `echo not-json`), nil, struct{}{}, &out)
	require.Error(t, err)
	assert.True(t, isPermanent(err))
	assert.Contains(t, err.Error(), "decode output")
}

func TestStartWithCommandCollaborators(t *testing.T) {
	agent := script(t, `cat >/dev/null; exit 1`)
	db := filepath.Join(t.TempDir(), "pedro.db")

	cmd := NewRootCommand(WithIDGenerator(engine.NewFixedGenerator("s-1")))
	cmd.SetArgs([]string{
		"--db", db, "--retry-max-tries", "1",
		"--agent-cmd", agent, "--scorer-cmd", agent, "--runner-cmd", agent,
		"start", "--objective", "price orders",
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), string(ir.CodeAgentInvocationFailure))
}
