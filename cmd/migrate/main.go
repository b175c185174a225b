package main

// Applies the record store migrations:
//   go run ./cmd/migrate

import (
	"context"
	"os"

	"docscan-backend/internal/shared/config"
	"docscan-backend/internal/shared/storage/db"
	"docscan-backend/internal/shared/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	defer telemetry.Sync()
	cfg := config.Load()
	ctx := context.Background()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFor(cfg, db.ProfileMigrate))
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err})
		return 1
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err})
		return 1
	}
	telemetry.Info("migrate.done", nil)
	return 0
}
