package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/mergepoint/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured merge points over HTTP",
		Long: `Serve every configured merge point over HTTP until interrupted.
The listen address also resolves from MERGEPOINT_ADDR.

Examples:
  mergepoint serve --addr :8080
  MERGEPOINT_DB=/data/merge.db mergepoint serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", DefaultAddr, "listen address")
	if rootOpts.settings != nil {
		_ = rootOpts.settings.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	}
	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	addr := opts.setting("addr", opts.Addr)

	ws, err := openWorkspace(opts.RootOptions)
	if err != nil {
		return err
	}
	defer ws.Close()

	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(ws.points, server.WithLogger(opts.logger()))
	if err := srv.Run(ctx, addr); err != nil {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	return nil
}
