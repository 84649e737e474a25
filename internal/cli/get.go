package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Point string
}

// RecordResult is the JSON shape of one merge record.
type RecordResult struct {
	Identity    ir.Identity `json:"identity"`
	OriginIndex int         `json:"origin_index"`
	Origin      string      `json:"origin"`
	Key         ir.Object   `json:"key"`
	Seq         int64       `json:"seq"`
	BatchID     string      `json:"batch_id"`
}

func newRecordResult(rec ir.MergeRecord) RecordResult {
	return RecordResult{
		Identity:    rec.Identity,
		OriginIndex: rec.Binding.OriginIndex,
		Origin:      rec.Binding.Origin,
		Key:         rec.Binding.Key,
		Seq:         rec.Seq,
		BatchID:     rec.BatchID,
	}
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show the merge record of an identity",
		Long: `Show the merge record stored under an identity: the origin it is bound
to and the full origin key.

Examples:
  mergepoint get 3f0c2b1a9d8e7f60112233445566778f
  mergepoint get --point PositionOutput --format json 3f0c2b1a9d8e7f60112233445566778f`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Point, "point", "p", "", "merge point (default: first declared)")
	return cmd
}

func runGet(opts *GetOptions, cmd *cobra.Command, arg string) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)

	ids, err := parseIdentities([]string{arg})
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

	rec, err := table.Get(ctx, ids[0])
	if errors.Is(err, merge.ErrNotFound) {
		_ = formatter.Error("NOT_FOUND", fmt.Sprintf("no merge record %s in %s", ids[0], table.Name()), nil)
		return WrapExitError(ExitFailure, "record not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "get failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(newRecordResult(rec))
	}
	fmt.Fprintf(formatter.Writer, "%s\t%s[%d]\t%s\n",
		rec.Identity, rec.Binding.Origin, rec.Binding.OriginIndex, keyString(rec.Binding.Key))
	formatter.VerboseLog("seq %d, batch %s", rec.Seq, rec.BatchID)
	return nil
}
