package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"autoapply-backend/internal/bootstrap"
	"autoapply-backend/internal/shared/config"
	"autoapply-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	if err := telemetry.Init(telemetry.Config{Format: cfg.Log.Format, Level: cfg.Log.Level}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{WithRouter: true, WithScheduler: true})
	if err != nil {
		telemetry.Error("startup.failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Serve(ctx); err != nil {
		telemetry.Error("server.failed", map[string]any{"error": err})
		os.Exit(1)
	}
}
