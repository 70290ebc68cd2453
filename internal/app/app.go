// Package app wires configuration, logging, metrics, blob storage and the
// roster store for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"rosterkit/internal/adapters/exports"
	"rosterkit/internal/blob"
	"rosterkit/internal/config"
	"rosterkit/internal/observability"
	"rosterkit/internal/roster"
)

// App holds the shared runtime pieces.
type App struct {
	Config         config.Config
	Logger         *observability.ZapLogger
	Metrics        observability.MetricsRecorder
	MetricsHandler http.Handler
	Blobs          blob.Store
	Store          *roster.Store
	Exports        *exports.Worker
}

var openBlobs = blob.OpenDriver

// Bootstrap builds and loads everything described by cfg. The export worker
// is started; Close stops it.
func Bootstrap(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := observability.NewZapLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	metrics, handler, err := observability.NewMetrics(cfg.MetricsBackend)
	if err != nil {
		return nil, err
	}
	blobs, err := openBlobs(ctx, cfg.BlobDriver)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	logger.Info("blob store ready", "driver", blobs.Driver())

	store := roster.New(blobs,
		roster.WithKey(cfg.StoreKey),
		roster.WithLogger(logger),
		roster.WithMetricsRecorder(metrics),
	)
	if err := store.Load(ctx); err != nil {
		closeBlobs(blobs)
		return nil, fmt.Errorf("load roster: %w", err)
	}
	logger.Info("roster loaded", "key", store.Key(), "users", store.Len())

	worker := exports.NewWorker(store, blobs,
		exports.WithLogger(logger),
		exports.WithMetricsRecorder(metrics),
	)
	worker.Start()

	return &App{
		Config:         cfg,
		Logger:         logger,
		Metrics:        metrics,
		MetricsHandler: handler,
		Blobs:          blobs,
		Store:          store,
		Exports:        worker,
	}, nil
}

// Close stops the export worker, releases the blob backend and flushes logs.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Exports.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop exports: %w", err))
	}
	if c, ok := a.Blobs.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close blob store: %w", err))
		}
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}

func closeBlobs(blobs blob.Store) {
	if c, ok := blobs.(io.Closer); ok {
		_ = c.Close()
	}
}
