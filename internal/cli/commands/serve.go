package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/sqlscope/internal/server"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scope and completion API over HTTP",
		Long: `Start the HTTP JSON API:

  GET  /healthz
  POST /v1/parse      {"sql": "..."}
  POST /v1/visible    {"sql": "...", "offset": N}
  POST /v1/complete   {"sql": "...", "offset": N}
  POST /v1/hover      {"sql": "...", "offset": N}
  GET  /v1/tables?schema=name
  GET  /v1/events     catalog reload notifications (server-sent events)

When catalog.file is set, the file is watched and reloaded on change.`,
		Example: `  sqlscope serve --addr :7410
  curl -s localhost:7410/v1/complete -d '{"sql":"SELECT o. FROM orders o","offset":9}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (default: server.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	addr := cc.Cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	srv := server.New(server.Config{
		Engine:    cc.Engine,
		Addr:      addr,
		Static:    cc.Sources.Static,
		WatchPath: cc.Cfg.Catalog.File,
		Logger:    cc.Logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cc.Renderer.Muted("listening on http://" + addr)
	return srv.Serve(ctx)
}
