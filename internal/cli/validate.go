package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mergepoint/internal/config"
)

// ValidationResult is the JSON payload of the validate command.
type ValidationResult struct {
	Valid       bool                     `json:"valid"`
	MergePoints []string                 `json:"merge_points,omitempty"`
	Errors      []config.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [CONFIG]",
		Short: "Validate merge point declarations",
		Long: `Validate a merge point configuration file without opening any database.
Every problem is reported, not just the first. Defaults to --config.

Examples:
  mergepoint validate ./mergepoint.yaml
  mergepoint validate ./mergepoint.cue --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, cmd, path)
		},
	}
}

func runValidate(opts *RootOptions, cmd *cobra.Command, path string) error {
	formatter := opts.formatter(cmd)
	if path == "" {
		_ = formatter.Error("E200", "no config file given", nil)
		return NewExitError(ExitCommandError, "no config file given")
	}
	formatter.VerboseLog("Validating %s", path)

	cfg, err := config.Load(path)
	var invalid *config.InvalidError
	if errors.As(err, &invalid) {
		return outputValidationErrors(formatter, invalid.Errors)
	}
	if err != nil {
		_ = formatter.Error("E200", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	names := make([]string, len(cfg.MergePoints))
	for i, mp := range cfg.MergePoints {
		names[i] = mp.Name
	}
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, MergePoints: names})
	}
	fmt.Fprintf(formatter.Writer, "\u2713 %d merge point(s) valid\n", len(names))
	return nil
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, errs []config.ValidationError) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
		}
		if len(errs) > 0 {
			response.Error = &CLIError{Code: errs[0].Code, Message: errs[0].Message}
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "\u2717 Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", err.Code, err.Field, err.Message)
	}
	return exitErr
}
