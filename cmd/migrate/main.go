// Command migrate applies the embedded schema migrations to DATABASE_URL.
package main

import (
	"context"
	"os"
	"time"

	"vitaeforge/internal/shared/config"
	"vitaeforge/internal/shared/storage/db"
	"vitaeforge/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	if cfg.DatabaseURL == "" {
		telemetry.Error("migrate.no_database", map[string]any{"reason": "DATABASE_URL is empty"})
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.MigratePool().FromEnv())
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	start := time.Now()
	version, err := db.Migrate(ctx, sqlDB)
	if err != nil {
		telemetry.Error("migrate.failed", map[string]any{"err": err.Error()})
		sqlDB.Close()
		os.Exit(1)
	}
	telemetry.Info("migrate.complete", map[string]any{"version": version, "duration_ms": time.Since(start).Milliseconds()})
}
