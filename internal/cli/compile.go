package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/compiler"
	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledManifest is the JSON form of a compiled session manifest.
type CompiledManifest struct {
	ID        string           `json:"id,omitempty"`
	Objective string           `json:"objective"`
	Scope     ir.ScopeBoundary `json:"scope"`
	Entry     *ir.EntryPoint   `json:"entry,omitempty"`
	Limits    CompiledLimits   `json:"limits"`
	Artifacts []ir.Artifact    `json:"artifacts"`

	// Fingerprint is the content hash of the artifact snapshot. Two
	// manifests with the same fingerprint resolve to the same entry point.
	Fingerprint string `json:"fingerprint"`
}

// CompiledLimits mirrors compiler.Limits with JSON names.
type CompiledLimits struct {
	MaxTDDIterations int `json:"max_tdd_iterations,omitempty"`
	MaxRevisions     int `json:"max_revisions,omitempty"`
}

// CompileSummary is printed when the output goes to a file.
type CompileSummary struct {
	Manifest    string `json:"manifest"`
	Output      string `json:"output"`
	Artifacts   int    `json:"artifacts"`
	Fingerprint string `json:"fingerprint"`
}

func (s CompileSummary) String() string {
	return fmt.Sprintf("✓ compiled %s to %s (%d artifacts, fingerprint %s)", s.Manifest, s.Output, s.Artifacts, shortID(s.Fingerprint))
}

func (m CompiledManifest) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "objective:   %s\n", m.Objective)
	if len(m.Scope.Include) > 0 {
		fmt.Fprintf(&b, "include:     %s\n", strings.Join(m.Scope.Include, ", "))
	}
	if len(m.Scope.Exclude) > 0 {
		fmt.Fprintf(&b, "exclude:     %s\n", strings.Join(m.Scope.Exclude, ", "))
	}
	if m.Entry != nil {
		fmt.Fprintf(&b, "entry:       %s\n", m.Entry)
	}
	for _, a := range m.Artifacts {
		fmt.Fprintf(&b, "artifact:    %s [%s]\n", a.Ref(), a.Status)
	}
	fmt.Fprintf(&b, "fingerprint: %s", m.Fingerprint)
	return b.String()
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <manifest.cue>",
		Short: "Compile a CUE session manifest to JSON",
		Long: `Compile a CUE session manifest, validate it and print the result as
JSON together with the fingerprint of its artifact snapshot.

With --output the JSON is written to a file and a summary is printed.

Examples:
  pedro compile ./session.cue
  pedro compile ./session.cue -o session.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	m, err := LoadManifest(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid manifest", err)
	}
	compiled, err := compileManifest(m)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot fingerprint manifest", err)
	}
	formatter := opts.formatter(cmd)
	if opts.Output == "" {
		return formatter.Success(compiled)
	}

	data, err := json.MarshalIndent(compiled, "", "  ")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode manifest", err)
	}
	if err := os.WriteFile(opts.Output, append(data, '\n'), 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	opts.Logger.Debug("manifest compiled", "manifest", path, "output", opts.Output)
	return formatter.Success(CompileSummary{
		Manifest:    path,
		Output:      opts.Output,
		Artifacts:   len(compiled.Artifacts),
		Fingerprint: compiled.Fingerprint,
	})
}

func compileManifest(m *compiler.Manifest) (CompiledManifest, error) {
	hash, err := session.NewSnapshot(m.Artifacts...).Hash()
	if err != nil {
		return CompiledManifest{}, err
	}
	artifacts := m.Artifacts
	if artifacts == nil {
		artifacts = []ir.Artifact{}
	}
	return CompiledManifest{
		ID:        m.ID,
		Objective: m.Objective,
		Scope:     m.Scope,
		Entry:     m.Entry,
		Limits: CompiledLimits{
			MaxTDDIterations: m.Limits.MaxTDDIterations,
			MaxRevisions:     m.Limits.MaxRevisions,
		},
		Artifacts:   artifacts,
		Fingerprint: hash,
	}, nil
}
