package db

import (
	"context"
	"fmt"

	"github.com/quatton/paydesk/pkg/db/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrate applies pending migrations and returns a one line summary.
func Migrate(ctx context.Context, db *bun.DB) (string, error) {
	migrator := migrate.NewMigrator(db, migrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return "", fmt.Errorf("failed to init migrations: %w", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to migrate: %w", err)
	}

	if group.IsZero() {
		return "Database is up to date", nil
	}
	return fmt.Sprintf("Migrated to %s", group), nil
}

// Rollback reverts the last applied migration group.
func Rollback(ctx context.Context, db *bun.DB) (string, error) {
	migrator := migrate.NewMigrator(db, migrations.Migrations)

	group, err := migrator.Rollback(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to rollback: %w", err)
	}
	if group.IsZero() {
		return "No groups to roll back", nil
	}
	return fmt.Sprintf("Rolled back %s", group), nil
}
