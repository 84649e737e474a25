package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mergepoint/internal/ir"
)

// InsertOptions holds flags for the insert command.
type InsertOptions struct {
	*RootOptions
	Point string
}

// InsertResult is the JSON payload of the insert command.
type InsertResult struct {
	MergePoint string        `json:"merge_point"`
	Identities []ir.Identity `json:"identities"`
	Inserted   int           `json:"inserted"`
	BatchID    string        `json:"batch_id,omitempty"`
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InsertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "insert KEYJSON...",
		Short: "Admit candidate keys into a merge point",
		Long: `Admit one batch of candidate keys into a merge point.

Each key must identify exactly one row of exactly one declared source.
The batch is all or nothing: if any key is orphaned, matches several
sources or conflicts with an existing identity, every failure is
reported and nothing is written. Keys already merged are no-ops.

Examples:
  mergepoint insert '{"nwb_file_name":"m2.nwb","interval":"epoch 1"}'
  mergepoint insert --point PositionOutput '{"s":3}' '{"s":5,"p":1}'`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInsert(opts, cmd, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Point, "point", "p", "", "merge point (default: first declared)")
	return cmd
}

func runInsert(opts *InsertOptions, cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)

	keys := make([]ir.Object, len(args))
	for i, arg := range args {
		key, err := parseKey(arg)
		if err != nil {
			return err
		}
		keys[i] = key
	}

	ws, err := openWorkspace(opts.RootOptions)
	if err != nil {
		return err
	}
	defer ws.Close()

	table, err := ws.table(opts.Point)
	if err != nil {
		return err
	}

	res, err := table.InsertBatch(ctx, keys)
	if err != nil {
		if formatter.MergeErrors(err) {
			return WrapExitError(ExitFailure, "batch rejected", err)
		}
		return WrapExitError(ExitCommandError, "insert failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(InsertResult{
			MergePoint: table.Name(),
			Identities: res.Identities,
			Inserted:   res.Inserted,
			BatchID:    res.BatchID,
		})
	}

	for _, id := range res.Identities {
		fmt.Fprintln(formatter.Writer, id)
	}
	if res.Inserted == 0 {
		formatter.VerboseLog("no new records (all keys already merged)")
	} else {
		formatter.VerboseLog("batch %s: %d new record(s)", res.BatchID, res.Inserted)
	}
	return nil
}
