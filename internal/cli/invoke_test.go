package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pedro/internal/engine"
	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/testutil"
)

func TestInvokeCommand_ClassifiesTests(t *testing.T) {
	env := newCLIEnv(t)
	env.agent.On(engine.CapUnitTest, testutil.Test(ir.KindUnitTest, "adds-item"))

	out, err := env.run("--format", "json", "invoke", "unit-test", "--objective", "price orders", "--feedback", "cover empty carts")
	require.NoError(t, err)
	res := decodeData[InvokeResult](t, out)
	assert.Equal(t, engine.CapUnitTest, res.Capability)
	assert.Equal(t, "adds-item", res.Artifact.Name)
	assert.Equal(t, ir.ClassUnit, res.Class)
	assert.Empty(t, res.Problem)

	calls := env.agent.CallsFor(engine.CapUnitTest)
	require.Len(t, calls, 1)
	assert.Equal(t, "price orders", calls[0].Objective)
	assert.Equal(t, []string{"cover empty carts"}, calls[0].Feedback)
	assert.Equal(t, 1, calls[0].Attempt)
}

func TestInvokeCommand_MisclassifiedTest(t *testing.T) {
	env := newCLIEnv(t)
	acc := testutil.Test(ir.KindAcceptanceTest, "checkout")
	acc.Profile = testutil.Profile(ir.KindUnitTest)
	env.agent.On(engine.CapAcceptanceTest, acc)

	out, err := env.run("invoke", "acceptance-test")
	require.NoError(t, err)
	assert.Contains(t, out, "acceptance-test produced")
	assert.Contains(t, out, "problem:")
}

func TestInvokeCommand_DefaultsKind(t *testing.T) {
	env := newCLIEnv(t)
	env.agent.On(engine.CapArchitecturePlan, ir.Artifact{Name: "hexagonal", Status: ir.StatusApproved})

	out, err := env.run("--format", "json", "invoke", "architecture-plan")
	require.NoError(t, err)
	res := decodeData[InvokeResult](t, out)
	assert.Equal(t, ir.KindArchitecturePlan, res.Artifact.Kind)
	assert.Empty(t, res.Class)
}

func TestInvokeCommand_RequestFile(t *testing.T) {
	env := newCLIEnv(t)
	env.agent.On(engine.CapDomainCode, testutil.Impl(ir.KindDomainCode, "cart", "UnitTest/adds-item"))
	req := writeFile(t, "request.json", `{"session_id": "s-9", "objective": "price orders", "target_test": "UnitTest/adds-item", "attempt": 2}`)

	out, err := env.run("invoke", "domain-code", "--request", req)
	require.NoError(t, err)
	assert.Contains(t, out, "change:")

	calls := env.agent.CallsFor(engine.CapDomainCode)
	require.Len(t, calls, 1)
	assert.Equal(t, engine.CapDomainCode, calls[0].Capability)
	assert.Equal(t, 2, calls[0].Attempt)
	assert.Equal(t, "price orders", calls[0].Objective)
}

func TestInvokeCommand_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*cliEnv)
		args  []string
		exit  int
		want  string
	}{
		{
			name: "unknown capability",
			args: []string{"invoke", "deploy"},
			exit: ExitCommandError,
			want: "unknown capability",
		},
		{
			name: "missing request file",
			args: []string{"invoke", "review", "--request", "/nonexistent/request.json"},
			exit: ExitCommandError,
			want: "failed to read request",
		},
		{
			name: "agent failure",
			setup: func(e *cliEnv) {
				e.agent.Fail(engine.CapReview, 1, errors.New("model unavailable"))
			},
			args: []string{"invoke", "review"},
			exit: ExitFailure,
			want: "model unavailable",
		},
		{
			name: "wrong kind",
			setup: func(e *cliEnv) {
				e.agent.On(engine.CapUnitTest, testutil.Plan("not-a-test"))
			},
			args: []string{"invoke", "unit-test"},
			exit: ExitFailure,
			want: "returned a ArchitecturePlan artifact",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}
			_, err := env.run(tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
