package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/classify"
	"github.com/roach88/pedro/internal/engine"
	"github.com/roach88/pedro/internal/ir"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Objective string
	Request   string // path to a JSON engine.AgentRequest
	Feedback  []string
}

// InvokeResult is the artifact an agent produced, with its classification
// when it is a test.
type InvokeResult struct {
	Capability engine.Capability `json:"capability"`
	Artifact   ir.Artifact       `json:"artifact"`
	Class      ir.TestClass      `json:"class,omitempty"`
	Problem    string            `json:"problem,omitempty"`
}

func (r InvokeResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s produced %s [%s]", r.Capability, r.Artifact.Ref(), r.Artifact.Status)
	if r.Class != "" {
		fmt.Fprintf(&b, "\n  class:   %s", r.Class)
	}
	if r.Problem != "" {
		fmt.Fprintf(&b, "\n  problem: %s", r.Problem)
	}
	if c := r.Artifact.Change; c != nil {
		fmt.Fprintf(&b, "\n  change:  %s (traces to %s)", c.Summary, strings.Join(c.TracesTo, ", "))
	}
	return b.String()
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <capability>",
		Short: "Ask the agent for one artifact outside a session",
		Long: `Send one request to the configured agent and print the artifact it
returns. Tests are classified the way a session would classify them.

Use it to check an agent command before starting a session. Nothing is
stored. Exit status is 1 when the agent fails or returns an artifact the
capability cannot produce.

Examples:
  pedro invoke user-story --objective "add checkout discounts" --agent-cmd ./agent
  pedro invoke unit-test --request ./request.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeAgent(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Objective, "objective", "", "objective sent with the request")
	cmd.Flags().StringVar(&opts.Request, "request", "", "JSON file holding the full request")
	cmd.Flags().StringSliceVar(&opts.Feedback, "feedback", nil, "feedback lines sent with the request")

	return cmd
}

func invokeAgent(opts *InvokeOptions, name string, cmd *cobra.Command) error {
	capability := engine.Capability(name)
	if !slices.Contains(engine.Capabilities(), capability) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown capability %q: must be one of %v", name, engine.Capabilities()))
	}

	req := engine.AgentRequest{}
	if opts.Request != "" {
		data, err := os.ReadFile(opts.Request)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read request", err)
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return WrapExitError(ExitCommandError, "invalid request JSON", err)
		}
	}
	req.Capability = capability
	if opts.Objective != "" {
		req.Objective = opts.Objective
	}
	req.Feedback = append(req.Feedback, opts.Feedback...)
	if req.Attempt == 0 {
		req.Attempt = 1
	}

	c, err := opts.resolveCollaborators()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := c.Agent.Invoke(ctx, capability, req)
	if err != nil {
		return WrapExitError(ExitFailure, "agent failed", err)
	}
	kinds := capability.Kinds()
	if a.Kind == "" {
		a.Kind = kinds[0]
	}
	if !slices.Contains(kinds, a.Kind) {
		return NewExitError(ExitFailure, fmt.Sprintf("%s returned a %s artifact, want one of %v", capability, a.Kind, kinds))
	}

	res := InvokeResult{Capability: capability, Artifact: a}
	if a.Kind.IsTest() {
		class, err := classify.Check(a)
		res.Class = class
		if err != nil {
			res.Problem = err.Error()
		}
	}
	opts.Logger.Debug("agent invoked", "capability", capability, "ref", a.Ref())
	return opts.formatter(cmd).Success(res)
}
