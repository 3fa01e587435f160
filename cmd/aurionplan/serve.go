package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	appLog "aurionplan/internal/log"
	"aurionplan/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the planning HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(flags)
			if err != nil {
				return err
			}
			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				conf.Listen = listen
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, conf)
			if err != nil {
				return err
			}
			if err := a.sessions.Start(); err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              conf.Listen,
				Handler:           web.NewServer(conf, a.svc).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen, "version", version)
				errCh <- srv.ListenAndServe()
			}()

			var serveErr error
			select {
			case <-ctx.Done():
				appLog.Info("signal received, shutting down")
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					serveErr = err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				appLog.Error("HTTP shutdown failed", err)
			}
			if err := a.close(shutdownCtx); err != nil {
				appLog.Error("cleanup failed", err)
			}
			appLog.Info("aurionplan exiting")
			return serveErr
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}
