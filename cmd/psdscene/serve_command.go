package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ddvk/psdscene/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var listen string
	var previewWidth int

	cmd := &cobra.Command{
		Use:   "serve [source]",
		Short: "Serve the edit session over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				ctx.cfg.Server.Listen = listen
			}
			if cmd.Flags().Changed("preview-width") {
				ctx.cfg.Server.PreviewWidth = previewWidth
			}
			cfg, err := ctx.withSource(args)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.NewServer(newSession(cfg), newFetcher(cfg), cfg.Source, cfg.Server.PreviewWidth)
			if err := srv.Reload(runCtx); err != nil {
				return err
			}

			httpServer := &http.Server{
				Addr:              cfg.Server.Listen,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errs := make(chan error, 1)
			go func() {
				log.WithField("listen", cfg.Server.Listen).Info("serving")
				errs <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errs:
				return err
			case <-runCtx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			log.Info("stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on")
	cmd.Flags().IntVar(&previewWidth, "preview-width", 0, "Width of the editing surface in pixels")
	return cmd
}
