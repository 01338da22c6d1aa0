package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker implements Locker using in-memory locks.
// This is suitable for single-node deployments where distributed locking is not needed.
// The locks are NOT shared across process restarts or multiple instances.
type MemoryLocker struct {
	mu     sync.Mutex
	locks  map[string]*lockEntry
	owner  string
	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

// lockEntry represents a single lock.
type lockEntry struct {
	expiresAt time.Time
	owner     string
}

// NewMemoryLocker creates a new in-memory locker and starts its cleanup loop.
// Call Stop to end the loop.
func NewMemoryLocker() *MemoryLocker {
	ml := &MemoryLocker{
		locks:  make(map[string]*lockEntry),
		owner:  uuid.NewString(),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}

	go ml.cleanupLoop(30 * time.Second)

	return ml
}

// Stop ends the cleanup loop. Locks remain usable.
func (m *MemoryLocker) Stop() {
	m.once.Do(func() { close(m.stopCh) })
}

// cleanupLoop periodically removes expired locks.
func (m *MemoryLocker) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

// cleanup removes expired locks.
func (m *MemoryLocker) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, entry := range m.locks {
		if !now.Before(entry.expiresAt) {
			delete(m.locks, key)
		}
	}
}

// live returns the unexpired entry for key. Callers hold m.mu.
func (m *MemoryLocker) live(key string) (*lockEntry, bool) {
	entry, exists := m.locks[key]
	if !exists {
		return nil, false
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.locks, key)
		return nil, false
	}
	return entry, true
}

// Acquire attempts to acquire a lock.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.live(key); held {
		return false, nil
	}

	m.locks[key] = &lockEntry{
		expiresAt: m.now().Add(ttl),
		owner:     m.owner,
	}
	return true, nil
}

// Release releases a lock held by this locker.
func (m *MemoryLocker) Release(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, held := m.live(key)
	if !held || entry.owner != m.owner {
		return false, nil
	}
	delete(m.locks, key)
	return true, nil
}

// Extend extends the TTL of a held lock.
func (m *MemoryLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, held := m.live(key)
	if !held || entry.owner != m.owner {
		return false, nil
	}
	entry.expiresAt = m.now().Add(ttl)
	return true, nil
}

// Ensure MemoryLocker implements Locker.
var _ Locker = (*MemoryLocker)(nil)
