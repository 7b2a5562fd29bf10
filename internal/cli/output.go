package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/roach88/pedro/internal/engine"
	"github.com/roach88/pedro/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // session suspended for input, committed or completed
	ExitFailure      = 1 // session stalled, interrupted or a collaborator failed
	ExitCommandError = 2 // bad input, missing session, inconsistent artifacts
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the JSON envelope for every command.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data. Text output uses data's String method.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes an error payload.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Data:   details,
			Error:  &CLIError{Code: code, Message: message},
		})
	}
	if details != nil {
		if _, err := fmt.Fprintln(f.Writer, details); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return err
}

func (f *OutputFormatter) encode(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTable returns a table writer. Render returns the table as a string.
func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

// OutcomeView is the printable result of start, resume and cancel.
type OutcomeView struct {
	Session string           `json:"session"`
	Status  ir.SessionStatus `json:"status"`
	Phase   ir.Phase         `json:"phase"`
	SubStep ir.SubStep       `json:"sub_step,omitempty"`
	Commits int              `json:"commits"`
	Code    ir.ReasonCode    `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
	Token   string           `json:"token,omitempty"`
}

func newOutcomeView(out engine.Outcome) OutcomeView {
	v := OutcomeView{
		Session: out.SessionID,
		Status:  out.Status,
		Phase:   out.Phase,
		SubStep: out.SubStep,
		Commits: out.Commits,
	}
	if sus := out.Suspension; sus != nil {
		v.Code = sus.Code
		v.Message = sus.Message
		v.Token = sus.Token
	}
	return v
}

func (v OutcomeView) String() string {
	var b strings.Builder
	where := ir.EntryPoint{Phase: v.Phase, SubStep: v.SubStep}.String()
	fmt.Fprintf(&b, "session %s: %s in %s\n", v.Session, v.Status, where)
	fmt.Fprintf(&b, "  commits: %d", v.Commits)
	if v.Code != "" {
		fmt.Fprintf(&b, "\n  code:    %s", v.Code)
		fmt.Fprintf(&b, "\n  message: %s", v.Message)
		fmt.Fprintf(&b, "\n  token:   %s", v.Token)
	}
	return b.String()
}
