package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/alexander-auth/internal/domain"
	"github.com/prn-tf/alexander-auth/internal/lock"
	"github.com/prn-tf/alexander-auth/internal/metrics"
	"github.com/prn-tf/alexander-auth/internal/repository/memory"
)

func seedOTPs(t *testing.T, store *memory.Store, now time.Time, expired, live int) {
	t.Helper()
	ctx := context.Background()
	repo := store.Repositories().OTP

	for i := 0; i < expired; i++ {
		c := domain.NewOTPChallenge(fmt.Sprintf("old%d@x.com", i), "123456", now.Add(-time.Hour), 10*time.Minute)
		require.NoError(t, repo.Create(ctx, c))
	}
	for i := 0; i < live; i++ {
		c := domain.NewOTPChallenge(fmt.Sprintf("new%d@x.com", i), "123456", now, 10*time.Minute)
		require.NoError(t, repo.Create(ctx, c))
	}
}

func newTestSweeper(t *testing.T, store *memory.Store, locker lock.Locker, now time.Time, batch int) (*OTPSweeper, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	sweeper := NewOTPSweeper(store.Repositories().OTP, locker, m, zerolog.Nop(), SweeperConfig{
		Interval:  time.Minute,
		BatchSize: batch,
		Now:       func() time.Time { return now },
	})
	return sweeper, m
}

func TestOTPSweeper_RunOnce(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	defer store.Close()
	seedOTPs(t, store, now, 7, 3)

	locker := lock.NewMemoryLocker()
	defer locker.Stop()

	sweeper, m := newTestSweeper(t, store, locker, now, 3)

	result := sweeper.RunOnce(context.Background())
	require.NoError(t, result.Err)
	assert.False(t, result.Skipped)
	assert.Equal(t, int64(7), result.Deleted)

	for i := 0; i < 3; i++ {
		n, err := store.Repositories().OTP.CountByEmail(context.Background(), fmt.Sprintf("new%d@x.com", i))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "live challenges are kept")
	}

	assert.Equal(t, float64(7), testutil.ToFloat64(m.SweepDeleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SweepRuns.WithLabelValues("success")))

	acquired, err := locker.Acquire(context.Background(), lock.Keys.OTPSweep(), time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired, "lock is released after the run")
}

func TestOTPSweeper_MaxBatches(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	defer store.Close()
	seedOTPs(t, store, now, 10, 0)

	m := metrics.NewMetrics(prometheus.NewRegistry())
	sweeper := NewOTPSweeper(store.Repositories().OTP, lock.NewNoOpLocker(), m, zerolog.Nop(), SweeperConfig{
		Interval:   time.Minute,
		BatchSize:  2,
		MaxBatches: 2,
		Now:        func() time.Time { return now },
	})

	result := sweeper.RunOnce(context.Background())
	require.NoError(t, result.Err)
	assert.Equal(t, int64(4), result.Deleted)

	result = sweeper.RunOnce(context.Background())
	assert.Equal(t, int64(4), result.Deleted)
}

func TestOTPSweeper_SkipsWhenLockHeld(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	defer store.Close()
	seedOTPs(t, store, now, 2, 0)

	locker := lock.NewMemoryLocker()
	defer locker.Stop()
	ok, err := locker.Acquire(context.Background(), lock.Keys.OTPSweep(), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	sweeper, m := newTestSweeper(t, store, locker, now, 10)

	result := sweeper.RunOnce(context.Background())
	assert.True(t, result.Skipped)
	assert.Zero(t, result.Deleted)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SweepRuns.WithLabelValues("skipped")))
}

func TestOTPSweeper_StoreFailure(t *testing.T) {
	now := time.Now()
	store := memory.NewStore()
	require.NoError(t, store.Close())

	sweeper, m := newTestSweeper(t, store, lock.NewNoOpLocker(), now, 10)

	result := sweeper.RunOnce(context.Background())
	assert.Error(t, result.Err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SweepRuns.WithLabelValues("failure")))
}

func TestOTPSweeper_StartStop(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	defer store.Close()
	seedOTPs(t, store, now, 3, 1)

	sweeper, _ := newTestSweeper(t, store, lock.NewNoOpLocker(), now, 10)
	sweeper.Start()
	sweeper.Start()

	require.Eventually(t, func() bool {
		n, err := store.Repositories().OTP.CountByEmail(context.Background(), "old0@x.com")
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)

	sweeper.Stop()
	sweeper.Stop()
}

// extendLocker grants every lock and answers Extend with a fixed result.
type extendLocker struct {
	lock.NoOpLocker
	extended bool
	calls    int
}

func (l *extendLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.calls++
	return l.extended, nil
}

func TestOTPSweeper_ExtendsLockBetweenBatches(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	defer store.Close()
	seedOTPs(t, store, now, 7, 0)

	locker := &extendLocker{extended: true}
	sweeper, _ := newTestSweeper(t, store, locker, now, 3)

	result := sweeper.RunOnce(context.Background())
	require.NoError(t, result.Err)
	assert.Equal(t, int64(7), result.Deleted)
	assert.Equal(t, 2, locker.calls, "extended after each full batch")
}

func TestOTPSweeper_StopsWhenLockLost(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	defer store.Close()
	seedOTPs(t, store, now, 7, 0)

	locker := &extendLocker{extended: false}
	sweeper, m := newTestSweeper(t, store, locker, now, 3)

	result := sweeper.RunOnce(context.Background())
	assert.ErrorIs(t, result.Err, ErrSweepLockLost)
	assert.Equal(t, int64(3), result.Deleted)
	assert.Equal(t, 1, locker.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SweepRuns.WithLabelValues("failure")))
}
