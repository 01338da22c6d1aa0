package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/prn-tf/alexander-auth/internal/repository"
	"github.com/prn-tf/alexander-auth/internal/repository/postgres/migrations"
)

// Migrator returns a goose migrator sharing the pool's connections.
// The caller must Close it.
func (db *DB) Migrator() *repository.Migrator {
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	return repository.NewMigrator(sqlDB, "pgx", migrations.FS, sqlDB.Close, db.logger)
}

// Migrate applies all pending migrations.
func (db *DB) Migrate(ctx context.Context) error {
	m := db.Migrator()
	defer m.Close()

	if err := m.Up(ctx); err != nil {
		return err
	}
	db.logger.Info().Msg("database migrations applied")
	return nil
}
