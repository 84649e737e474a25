package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mergepoint/internal/merge"
)

// ReconcileOptions holds flags for the reconcile and purge commands.
type ReconcileOptions struct {
	*RootOptions
	Point string
}

// PurgeResult is the JSON payload of the purge command.
type PurgeResult struct {
	MergePoint string `json:"merge_point"`
	Deleted    int    `json:"deleted"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "List merge records whose origin row is gone",
		Long: `List merge records whose origin row has been deleted upstream.
Nothing is removed; pass the reported identities to purge once the
deletion is confirmed.

Examples:
  mergepoint reconcile
  mergepoint reconcile --point PositionOutput --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Point, "point", "p", "", "merge point (default: first declared)")
	return cmd
}

func runReconcile(opts *ReconcileOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)

	ws, err := openWorkspace(opts.RootOptions)
	if err != nil {
		return err
	}
	defer ws.Close()

	table, err := ws.table(opts.Point)
	if err != nil {
		return err
	}

	dangling, err := table.Reconcile(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "reconcile failed", err)
	}

	if formatter.Format == "json" {
		results := make([]RecordResult, len(dangling))
		for i, rec := range dangling {
			results[i] = newRecordResult(rec)
		}
		return formatter.Success(results)
	}

	if len(dangling) == 0 {
		fmt.Fprintln(formatter.Writer, "no dangling records")
		return nil
	}
	for _, rec := range dangling {
		fmt.Fprintf(formatter.Writer, "%s\t%s[%d]\t%s\n",
			rec.Identity, rec.Binding.Origin, rec.Binding.OriginIndex, keyString(rec.Binding.Key))
	}
	return nil
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "purge ID...",
		Short: "Delete dangling merge records",
		Long: `Delete merge records whose origin row no longer exists. If any
identity is unknown or still has a live origin row, nothing is deleted.

Examples:
  mergepoint purge 3f0c2b1a9d8e7f60112233445566778f`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(opts, cmd, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Point, "point", "p", "", "merge point (default: first declared)")
	return cmd
}

func runPurge(opts *ReconcileOptions, cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)

	ids, err := parseIdentities(args)
	if err != nil {
		return err
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

	n, err := table.Purge(ctx, ids)
	switch {
	case errors.Is(err, merge.ErrOriginExists):
		_ = formatter.Error("ORIGIN_EXISTS", err.Error(), nil)
		return WrapExitError(ExitFailure, "purge refused", err)
	case errors.Is(err, merge.ErrNotFound):
		_ = formatter.Error("NOT_FOUND", err.Error(), nil)
		return WrapExitError(ExitFailure, "purge refused", err)
	case err != nil:
		return WrapExitError(ExitCommandError, "purge failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(PurgeResult{MergePoint: table.Name(), Deleted: n})
	}
	fmt.Fprintf(formatter.Writer, "purged %d record(s)\n", n)
	return nil
}
