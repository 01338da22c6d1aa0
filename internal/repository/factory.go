package repository

import (
	"context"
)

// Repositories holds all repository instances for one store.
type Repositories struct {
	User UserRepository
	OTP  OTPRepository
	Tx   TxManager
}

// DatabaseHealth is an interface for database health checks.
// This interface satisfies handler.HealthChecker for health endpoints.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// Store bundles the repositories with the connection that backs them.
type Store struct {
	*Repositories

	// Driver is the configured driver name.
	Driver string

	// Database is the underlying connection.
	Database DatabaseHealth
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.Database == nil {
		return nil
	}
	return s.Database.Close()
}
