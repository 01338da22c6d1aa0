// Package database opens the credential store selected by configuration.
package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-auth/internal/config"
	"github.com/prn-tf/alexander-auth/internal/repository"
	"github.com/prn-tf/alexander-auth/internal/repository/memory"
	"github.com/prn-tf/alexander-auth/internal/repository/postgres"
	"github.com/prn-tf/alexander-auth/internal/repository/sqlite"
)

// Open connects to the configured driver and returns its repositories.
// When migrate is true, pending schema migrations are applied first.
func Open(ctx context.Context, cfg config.DatabaseConfig, migrate bool, logger zerolog.Logger) (*repository.Store, error) {
	logger = logger.With().Str("component", "database").Str("driver", cfg.Driver).Logger()

	switch cfg.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &repository.Store{
			Repositories: &repository.Repositories{
				User: postgres.NewUserRepository(db),
				OTP:  postgres.NewOTPRepository(db),
				Tx:   db,
			},
			Driver:   cfg.Driver,
			Database: db,
		}, nil

	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.ConfigFromDatabase(cfg), logger)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &repository.Store{
			Repositories: &repository.Repositories{
				User: sqlite.NewUserRepository(db),
				OTP:  sqlite.NewOTPRepository(db),
				Tx:   db,
			},
			Driver:   cfg.Driver,
			Database: db,
		}, nil

	case "memory":
		store := memory.NewStore()
		logger.Warn().Msg("using in-memory store; data will not survive a restart")
		return &repository.Store{
			Repositories: store.Repositories(),
			Driver:       cfg.Driver,
			Database:     store,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrator is implemented by drivers with a SQL schema.
type Migrator interface {
	Migrator() *repository.Migrator
}

// OpenMigrator connects to a SQL driver and returns its migrator and the
// connection to close when done.
func OpenMigrator(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.Migrator, repository.DatabaseHealth, error) {
	var (
		db   Migrator
		conn repository.DatabaseHealth
	)

	switch cfg.Driver {
	case "postgres":
		pg, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		db, conn = pg, pg
	case "sqlite":
		lite, err := sqlite.NewDB(ctx, sqlite.ConfigFromDatabase(cfg), logger)
		if err != nil {
			return nil, nil, err
		}
		db, conn = lite, lite
	default:
		return nil, nil, fmt.Errorf("driver %q has no migrations", cfg.Driver)
	}

	return db.Migrator(), conn, nil
}
