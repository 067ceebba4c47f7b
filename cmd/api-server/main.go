package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/trycompai/comp-sub012/app"
	"github.com/trycompai/comp-sub012/config"
	"github.com/trycompai/comp-sub012/internal/observability"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting api server",
		zap.String("environment", cfg.Environment),
		zap.String("addr", cfg.Server.Address()))

	return app.Serve(ctx, cfg, logger, app.ServeOptions{Migrate: cfg.IsDevelopment()})
}
