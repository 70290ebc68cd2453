// Command rosterd serves the roster list over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rosterkit/internal/adapters/httpapi"
	"rosterkit/internal/app"
	"rosterkit/internal/config"
)

const shutdownTimeout = 10 * time.Second

var exitFunc = os.Exit

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rosterd:", err)
		exitFunc(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	logger := a.Logger

	opts := []httpapi.Option{
		httpapi.WithLogger(logger),
		httpapi.WithExporter(a.Exports),
	}
	if a.MetricsHandler != nil {
		opts = append(opts, httpapi.WithMetricsHandler(a.MetricsHandler))
	}
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(a.Store, opts...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("listen failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
