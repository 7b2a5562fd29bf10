package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pedro/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Manifest  string                     `json:"manifest"`
	Valid     bool                       `json:"valid"`
	Artifacts int                        `json:"artifacts"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

func (r ValidationResult) String() string {
	if r.Valid {
		return fmt.Sprintf("✓ %s is valid (%d artifacts)", r.Manifest, r.Artifacts)
	}
	var b strings.Builder
	b.WriteString("✗ Validation failed\n")
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n  %s %s: %s", e.Code, e.Field, e.Message)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest.cue>",
		Short: "Validate a session manifest",
		Long: `Check a CUE session manifest against the session schema and the
rules the schema cannot express: duplicate artifacts, scope conflicts,
sub-steps outside planning.

Exit status is 1 when the manifest is invalid and 2 when it cannot be read
or compiled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	m, err := LoadManifest(path)
	var loadErr *LoadError
	switch {
	case err == nil:
		return formatter.Success(ValidationResult{Manifest: path, Valid: true, Artifacts: len(m.Artifacts)})
	case errors.As(err, &loadErr) && loadErr.Code == ErrCodeValidation:
		result := ValidationResult{Manifest: path, Artifacts: len(m.Artifacts), Errors: loadErr.Errors}
		if ferr := formatter.Error(loadErr.Errors[0].Code, loadErr.Errors[0].Message, result); ferr != nil {
			return ferr
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(loadErr.Errors)))
	case errors.As(err, &loadErr):
		if ferr := formatter.Error(loadErr.Code, loadErr.Message, nil); ferr != nil {
			return ferr
		}
		return NewExitError(ExitCommandError, loadErr.Error())
	default:
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}
}
