package main

// Apply the pipeline_runs schema ahead of a deploy:
//   go run ./cmd/migrate

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"autoapply-backend/internal/shared/config"
	"autoapply-backend/internal/shared/storage/db"
	"autoapply-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	if err := telemetry.Init(telemetry.Config{Format: cfg.Log.Format, Level: cfg.Log.Level}); err != nil {
		os.Exit(1)
	}
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		telemetry.Error("migrate.database_url.missing", map[string]any{"env": cfg.Env})
		os.Exit(1)
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultCLIOptions()))
	if err != nil {
		telemetry.Error("migrate.connect.failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		telemetry.Error("migrate.apply.failed", map[string]any{"error": err})
		os.Exit(1)
	}
	telemetry.Info("migrate.apply.complete", nil)
}
