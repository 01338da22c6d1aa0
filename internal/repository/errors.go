package repository

import "errors"

// Repository errors
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrNestedTxOptions indicates WithTxOptions was called inside an
	// existing transaction with options that cannot be honored.
	ErrNestedTxOptions = errors.New("cannot change options of an active transaction")
)

// Lock errors
var (
	// ErrLockNotAcquired indicates the lock could not be acquired.
	ErrLockNotAcquired = errors.New("lock not acquired")

	// ErrLockNotOwned indicates the operation failed because we don't own the lock.
	ErrLockNotOwned = errors.New("lock not owned")
)
