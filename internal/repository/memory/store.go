// Package memory provides an in-process credential store.
// It is intended for development and tests; data is lost on restart and
// is not shared between instances.
package memory

import (
	"context"
	"sync"

	"github.com/prn-tf/alexander-auth/internal/repository"
)

// Store holds users and OTP challenges in maps guarded by one RWMutex.
// Transactions are emulated with an undo log and per-key mutexes.
type Store struct {
	mu           sync.RWMutex
	users        map[int64]*userRecord
	usersByEmail map[string]int64
	otps         map[int64]*otpRecord
	nextUserID   int64
	nextOTPID    int64

	keys   *keyedMutex
	closed bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:        make(map[int64]*userRecord),
		usersByEmail: make(map[string]int64),
		otps:         make(map[int64]*otpRecord),
		keys:         newKeyedMutex(),
	}
}

// Repositories returns the repositories backed by this store.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User: &userRepository{s: s},
		OTP:  &otpRepository{s: s},
		Tx:   s,
	}
}

// Ping always succeeds until the store is closed.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Health is equivalent to Ping.
func (s *Store) Health(ctx context.Context) error {
	return s.Ping(ctx)
}

// Close marks the store closed. Subsequent pings fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// txState records how to revert the writes made inside a transaction.
type txState struct {
	undo []func()
}

type txCtxKey struct{}

func txFrom(ctx context.Context) *txState {
	tx, _ := ctx.Value(txCtxKey{}).(*txState)
	return tx
}

// record registers an undo step. Callers hold s.mu.
func record(ctx context.Context, undo func()) {
	if tx := txFrom(ctx); tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

// WithTx executes fn and reverts its writes if it returns an error.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.WithTxOptions(ctx, repository.TxOptions{}, fn)
}

// WithTxOptions executes fn within an emulated transaction. Options are
// accepted for interface compatibility; writes are not isolated from
// concurrent readers.
func (s *Store) WithTxOptions(ctx context.Context, opts repository.TxOptions, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		if opts != (repository.TxOptions{}) {
			return repository.ErrNestedTxOptions
		}
		return fn(ctx)
	}

	tx := &txState{}
	committed := false
	defer func() {
		if committed {
			return
		}
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
	}()

	if err := fn(context.WithValue(ctx, txCtxKey{}, tx)); err != nil {
		return err
	}
	committed = true
	return nil
}

// WithLockedTx runs fn in an emulated transaction while holding the mutex for key.
func (s *Store) WithLockedTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := s.keys.lock(ctx, key); err != nil {
		return err
	}
	defer s.keys.unlock(key)

	return s.WithTx(ctx, fn)
}

// Ensure Store implements the transaction and health interfaces.
var (
	_ repository.TxManager      = (*Store)(nil)
	_ repository.DatabaseHealth = (*Store)(nil)
)
