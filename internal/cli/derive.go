package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mergepoint/internal/ir"
)

// DeriveResult is the JSON payload of the derive command.
type DeriveResult struct {
	Identity  ir.Identity `json:"identity"`
	Canonical string      `json:"canonical"`
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "derive KEYJSON",
		Short: "Compute the merge identity of a full origin key",
		Long: `Compute the merge identity of a full origin key without touching
any database. The key must be the complete primary key of the origin row.

Examples:
  mergepoint derive '{"nwb_file_name":"m1.nwb","interval":"epoch 1","params_name":"default"}'
  mergepoint derive --format json '{"s":3}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(rootOpts, cmd, args[0])
		},
	}
}

func runDerive(opts *RootOptions, cmd *cobra.Command, arg string) error {
	formatter := opts.formatter(cmd)

	key, err := parseKey(arg)
	if err != nil {
		return err
	}
	canonical, err := ir.CanonicalKey(key)
	if err != nil {
		return WrapExitError(ExitCommandError, "key is not encodable", err)
	}
	id, err := ir.Derive(key)
	if err != nil {
		return WrapExitError(ExitCommandError, "key is not encodable", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(DeriveResult{Identity: id, Canonical: string(canonical)})
	}
	formatter.VerboseLog("canonical key: %s", canonical)
	fmt.Fprintln(formatter.Writer, id)
	return nil
}
