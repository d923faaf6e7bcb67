package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"plate-match/internal/httpapi"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := ctx.ensure()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := newPipeline(runCtx, cfg, log)
			if err != nil {
				return err
			}
			defer p.Close()

			gin.SetMode(gin.ReleaseMode)
			handler := httpapi.NewHandler(p.proc, httpapi.Options{
				MaxUploadBytes: cfg.Server.MaxUploadBytes(),
				OCRAvailable:   p.ocrAvailable,
				External:       p.external,
			}, log)
			router := httpapi.NewRouter(handler, cfg.Server.CORSOrigins, log)

			return httpapi.Serve(runCtx, cfg.Server.Addr, router, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
