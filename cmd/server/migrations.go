package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/puris-api/internal/platform/postgres"
)

// handleMigrations runs the migration command given on the command line
// against the embedded migrations.
func handleMigrations(ctx context.Context, db *sql.DB, command string, logger *slog.Logger) error {
	logger.Info("Executing migrations", "command", command)
	return postgres.Migrate(ctx, db, command, logger)
}
