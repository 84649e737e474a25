package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
)

// UnionOptions holds flags for the union command.
type UnionOptions struct {
	*RootOptions
	Point string
	Where string // optional KEYJSON restriction
}

// NewUnionCommand creates the union command.
func NewUnionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UnionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "union",
		Short: "Print the union view of a merge point",
		Long: `Print one row per merge record with the key and non-key attributes of
its origin row. Attributes a source does not have are null. Rows whose
origin row has been deleted are marked dangling.

Examples:
  mergepoint union
  mergepoint union --point PositionOutput --where '{"nwb_file_name":"m1.nwb"}'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnion(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Point, "point", "p", "", "merge point (default: first declared)")
	cmd.Flags().StringVar(&opts.Where, "where", "", "only rows whose values equal every attribute of this JSON object")
	return cmd
}

func runUnion(opts *UnionOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)

	var where ir.Object
	if opts.Where != "" {
		w, err := parseKey(opts.Where)
		if err != nil {
			return err
		}
		where = w
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

	u, err := table.UnionView(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "union view failed", err)
	}
	if where != nil {
		u = u.Restrict(where)
	}

	if formatter.Format == "json" {
		return formatter.Success(u)
	}
	return writeUnionText(formatter, u)
}

func writeUnionText(f *OutputFormatter, u *merge.Union) error {
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)

	header := []string{"IDENTITY", "ORIGIN"}
	for _, c := range u.Columns {
		header = append(header, c.Name)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, r := range u.Rows {
		origin := r.Origin
		if r.Dangling {
			origin += " (dangling)"
		}
		cells := []string{r.Identity.String(), origin}
		for _, c := range u.Columns {
			cells = append(cells, cellString(r.Values[c.Name]))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	f.VerboseLog("%d row(s)", u.Len())
	return nil
}

func cellString(v ir.Value) string {
	switch val := v.(type) {
	case nil, ir.Null:
		return "NULL"
	case ir.String:
		return string(val)
	case ir.Int:
		return fmt.Sprintf("%d", int64(val))
	case ir.Bool:
		return fmt.Sprintf("%t", bool(val))
	default:
		return fmt.Sprintf("%v", val)
	}
}
