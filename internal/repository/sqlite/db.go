// Package sqlite provides the SQLite implementation of the credential store
// for embedded deployments. It uses modernc.org/sqlite, a pure Go SQLite
// implementation that doesn't require CGO.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/prn-tf/alexander-auth/internal/config"
	"github.com/prn-tf/alexander-auth/internal/repository"
	"github.com/prn-tf/alexander-auth/internal/repository/sqlite/migrations"
)

// timeLayout is fixed-width UTC so stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Config holds SQLite connection settings.
type Config struct {
	// Path is the path to the SQLite database file.
	// Use ":memory:" for in-memory database.
	Path string

	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns sets the maximum number of idle connections.
	MaxIdleConns int

	// ConnMaxLifetime sets the maximum connection lifetime.
	ConnMaxLifetime time.Duration

	// JournalMode sets the SQLite journal mode (WAL recommended for concurrency).
	JournalMode string

	// BusyTimeout sets the busy timeout in milliseconds.
	BusyTimeout int

	// CacheSize sets the page cache size (negative = KB, positive = pages).
	CacheSize int

	// SynchronousMode sets the synchronous mode (NORMAL, FULL, OFF).
	SynchronousMode string
}

// DefaultConfig returns a default SQLite configuration.
func DefaultConfig(dbPath string) Config {
	cfg := Config{
		Path:            dbPath,
		MaxOpenConns:    1, // single writer; every transaction is BEGIN IMMEDIATE
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		JournalMode:     "WAL",
		BusyTimeout:     5000,  // 5 seconds
		CacheSize:       -2000, // 2MB
		SynchronousMode: "NORMAL",
	}
	if dbPath == ":memory:" {
		// The database lives only as long as its connection.
		cfg.ConnMaxLifetime = 0
	}
	return cfg
}

// ConfigFromDatabase converts the application database settings.
func ConfigFromDatabase(c config.DatabaseConfig) Config {
	cfg := DefaultConfig(c.Path)
	if c.JournalMode != "" {
		cfg.JournalMode = c.JournalMode
	}
	if c.BusyTimeout > 0 {
		cfg.BusyTimeout = c.BusyTimeout
	}
	if c.CacheSize != 0 {
		cfg.CacheSize = c.CacheSize
	}
	if c.SynchronousMode != "" {
		cfg.SynchronousMode = c.SynchronousMode
	}
	return cfg
}

// dsn builds a modernc.org/sqlite connection string with pragmas applied
// to every new connection.
func (c Config) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout))
	q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", c.JournalMode))
	q.Add("_pragma", fmt.Sprintf("synchronous(%s)", c.SynchronousMode))
	q.Add("_pragma", fmt.Sprintf("cache_size(%d)", c.CacheSize))
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")

	return "file:" + c.Path + "?" + q.Encode()
}

// DB wraps a sql.DB connection for SQLite.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
	path   string
}

// NewDB creates a new SQLite database connection.
func NewDB(ctx context.Context, cfg Config, logger zerolog.Logger) (*DB, error) {
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	logger.Info().
		Str("path", cfg.Path).
		Str("journal_mode", cfg.JournalMode).
		Int("max_conns", cfg.MaxOpenConns).
		Msg("connected to SQLite database")

	return &DB{
		db:     db,
		logger: logger,
		path:   cfg.Path,
	}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.logger.Info().Msg("closing SQLite connection")
	return db.db.Close()
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// Health checks the database connection health.
func (db *DB) Health(ctx context.Context) error {
	var one int
	return db.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// DB returns the underlying sql.DB.
func (db *DB) DB() *sql.DB {
	return db.db
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txCtxKey struct{}

// querier returns the transaction carried by ctx, or the database.
func (db *DB) querier(ctx context.Context) querier {
	if tx, ok := ctx.Value(txCtxKey{}).(*sql.Tx); ok {
		return tx
	}
	return db.db
}

// WithTx executes a function within a transaction.
// If the function returns an error, the transaction is rolled back.
// Otherwise, the transaction is committed.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTxOptions(ctx, repository.TxOptions{}, fn)
}

// WithTxOptions executes a function within a transaction with options.
// SQLite transactions are always serializable, so opts only guard against
// changing the options of an active transaction.
func (db *DB) WithTxOptions(ctx context.Context, opts repository.TxOptions, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txCtxKey{}).(*sql.Tx); ok {
		if opts != (repository.TxOptions{}) {
			return repository.ErrNestedTxOptions
		}
		return fn(ctx)
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txCtxKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// WithLockedTx runs fn in a write transaction. Transactions open with
// BEGIN IMMEDIATE, which takes the database write lock up front, so the key
// needs no separate lock.
func (db *DB) WithLockedTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, fn)
}

// Migrator returns a goose migrator for this database.
func (db *DB) Migrator() *repository.Migrator {
	return repository.NewMigrator(db.db, "sqlite3", migrations.FS, nil, db.logger)
}

// Migrate applies all pending migrations.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.Migrator().Up(ctx); err != nil {
		return err
	}
	db.logger.Info().Str("path", db.path).Msg("database migrations applied")
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

// Ensure DB implements repository.TxManager.
var _ repository.TxManager = (*DB)(nil)
