package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/trycompai/comp-sub012/config"
	"github.com/trycompai/comp-sub012/migrations"
	"go.uber.org/zap"
)

// ServeOptions controls Serve
type ServeOptions struct {
	// Migrate applies pending migrations before the server starts
	Migrate bool
}

// Migrate applies all pending migrations to the configured database
func Migrate(cfg *config.Config, logger *zap.Logger) error {
	migrator, err := migrations.New(cfg.Database.URL(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()
	return migrator.Up()
}

// Serve wires the application, runs the HTTP server and the background
// workers, and shuts both down when ctx is cancelled
func Serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ServeOptions) error {
	if opts.Migrate {
		if err := Migrate(cfg, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := deps.Start(ctx); err != nil {
		_ = deps.Close(context.Background())
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           deps.Router(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err = <-serveErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("http server shutdown failed", zap.Error(shutdownErr))
	}
	if closeErr := deps.Close(shutdownCtx); closeErr != nil {
		logger.Error("dependency shutdown failed", zap.Error(closeErr))
	}
	return err
}
