package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/zkpresence/internal/adapters/http/api"
	service "github.com/okian/zkpresence/internal/app"
	"github.com/okian/zkpresence/internal/config"
	"github.com/okian/zkpresence/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves presence results over HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			svc := service.New(append(service.FromConfig(cfg), service.WithLogger(log))...)
			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("start service: %w", err)
			}
			defer svc.Stop()

			return runServer(ctx, newHTTPServer(cfg, svc), log)
		},
	}
}

// newHTTPServer mounts the API routes for svc on cfg.Addr.
func newHTTPServer(cfg *config.Config, svc *service.Service) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(svc, svc).Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// runServer serves until ctx ends, then shuts srv down gracefully.
func runServer(ctx context.Context, srv *http.Server, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info(ctx, "server stopped")
	return nil
}
