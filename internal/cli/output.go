package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected batch, missing record, invalid config
	ExitCommandError = 2 // Command error (bad arguments, database or config unreadable)
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
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // merge error code or E2xx config code
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// MergeFailure is the JSON detail of one rejected candidate.
type MergeFailure struct {
	Code     merge.ErrorCode `json:"code"`
	Message  string          `json:"message"`
	Keys     []ir.Object     `json:"keys,omitempty"`
	Sources  []string        `json:"sources,omitempty"`
	Identity string          `json:"identity,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// MergeErrors outputs every merge failure in err. The first failure becomes
// the response error; all of them are listed in the details. Returns false
// when err carries no merge failure.
func (f *OutputFormatter) MergeErrors(err error) bool {
	failures := merge.Errors(err)
	if len(failures) == 0 {
		return false
	}

	details := make([]MergeFailure, len(failures))
	for i, me := range failures {
		details[i] = MergeFailure{
			Code:    me.Code,
			Message: me.Message,
			Keys:    me.Keys,
			Sources: me.Sources,
		}
		if !me.Identity.IsZero() {
			details[i].Identity = me.Identity.String()
		}
	}

	if f.Format == "json" {
		_ = f.Error(string(failures[0].Code), failures[0].Message, details)
		return true
	}
	for _, me := range failures {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", me.Code, me.Message)
		for _, key := range me.Keys {
			fmt.Fprintf(f.Writer, "  key: %s\n", keyString(key))
		}
		if f.Verbose && len(me.Sources) > 0 {
			fmt.Fprintf(f.Writer, "  sources: %v\n", me.Sources)
		}
	}
	return true
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// keyString renders a key as compact JSON for text output.
func keyString(key ir.Object) string {
	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Sprintf("%v", map[string]ir.Value(key))
	}
	return string(data)
}
