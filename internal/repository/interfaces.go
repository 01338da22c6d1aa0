// Package repository defines data access interfaces for Alexander Auth.
// These interfaces abstract database operations, allowing for different implementations
// (PostgreSQL, SQLite, in-memory for testing) while keeping the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/prn-tf/alexander-auth/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
// Emails passed in are expected to be normalized already.
type UserRepository interface {
	// Create creates a new user and sets its ID.
	// Returns domain.ErrUserAlreadyExists if the email is taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// List returns all users with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// OTP Repository
// =============================================================================

// OTPRepository defines the interface for OTP challenge data access.
type OTPRepository interface {
	// Create inserts a new challenge and sets its ID.
	Create(ctx context.Context, otp *domain.OTPChallenge) error

	// GetByEmailAndCode retrieves the challenge matching both email and code.
	// Returns domain.ErrOtpNotFound if none matches.
	GetByEmailAndCode(ctx context.Context, email, code string) (*domain.OTPChallenge, error)

	// Delete deletes a challenge by ID.
	Delete(ctx context.Context, id int64) error

	// DeleteByEmail deletes every challenge for the email and returns the count.
	DeleteByEmail(ctx context.Context, email string) (int64, error)

	// CountByEmail returns the number of stored challenges for the email.
	CountByEmail(ctx context.Context, email string) (int64, error)

	// DeleteExpired deletes up to limit challenges whose expiry is at or before
	// the given instant and returns the number deleted.
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
}

// =============================================================================
// Common Types
// =============================================================================

// ListOptions contains common pagination options.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return.
	Limit int

	// Descending specifies descending order by ID if true.
	Descending bool
}

// ListResult is a generic paginated list result.
type ListResult[T any] struct {
	// Items is the list of items.
	Items []*T

	// Total is the total number of items (without pagination).
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}

// =============================================================================
// Transaction Support
// =============================================================================

// TxManager defines the interface for transaction management.
// Repositories called with the context passed to fn participate in the transaction.
type TxManager interface {
	// WithTx executes the given function within a transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// WithTxOptions executes the given function within a transaction with options.
	WithTxOptions(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error

	// WithLockedTx executes fn within a transaction that holds an exclusive
	// lock on key until commit or rollback. Concurrent calls for the same key
	// run one at a time.
	WithLockedTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// TxOptions contains transaction options.
type TxOptions struct {
	// IsolationLevel specifies the isolation level.
	IsolationLevel string

	// ReadOnly specifies if the transaction is read-only.
	ReadOnly bool
}
