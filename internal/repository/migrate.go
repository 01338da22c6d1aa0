package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// goose keeps its base filesystem, dialect and logger in package state.
var gooseMu sync.Mutex

// gooseLogger routes goose output through zerolog.
type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatal().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Migrator applies embedded goose migrations to a database.
type Migrator struct {
	db      *sql.DB
	dialect string
	fsys    fs.FS
	closeFn func() error
	logger  zerolog.Logger
}

// NewMigrator creates a migrator for the given dialect ("pgx" or "sqlite3").
// closeFn, when non-nil, is called by Close to release db.
func NewMigrator(db *sql.DB, dialect string, fsys fs.FS, closeFn func() error, logger zerolog.Logger) *Migrator {
	return &Migrator{
		db:      db,
		dialect: dialect,
		fsys:    fsys,
		closeFn: closeFn,
		logger:  logger.With().Str("component", "migrate").Logger(),
	}
}

func (m *Migrator) run(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(m.fsys)
	goose.SetLogger(gooseLogger{logger: m.logger})
	if err := goose.SetDialect(m.dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return fn()
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	return m.run(func() error {
		if err := goose.UpContext(ctx, m.db, "."); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		return nil
	})
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	return m.run(func() error {
		if err := goose.DownContext(ctx, m.db, "."); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		return nil
	})
}

// Status logs the state of every migration.
func (m *Migrator) Status(ctx context.Context) error {
	return m.run(func() error {
		return goose.StatusContext(ctx, m.db, ".")
	})
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	var version int64
	err := m.run(func() error {
		v, err := goose.GetDBVersionContext(ctx, m.db)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

// Close releases the migrator's connection if it owns one.
func (m *Migrator) Close() error {
	if m.closeFn == nil {
		return nil
	}
	return m.closeFn()
}
