package sqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/alexander-auth/internal/domain"
	"github.com/prn-tf/alexander-auth/internal/repository"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()
	db, err := NewDB(ctx, DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return db
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := domain.NewVerifiedPlaceholder("alice@example.com", baseTime)
	require.NoError(t, repo.Create(ctx, user))
	assert.NotZero(t, user.ID)

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.True(t, got.IsVerified)
	assert.False(t, got.IsActive)
	assert.True(t, got.CreatedAt.Equal(baseTime))

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)

	exists, err := repo.ExistsByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.NewVerifiedPlaceholder("dup@example.com", baseTime)))
	err := repo.Create(ctx, domain.NewVerifiedPlaceholder("dup@example.com", baseTime))
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestUserRepository_UpdateAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := domain.NewVerifiedPlaceholder("bob@example.com", baseTime)
	require.NoError(t, repo.Create(ctx, user))
	require.NoError(t, repo.Create(ctx, domain.NewVerifiedPlaceholder("carol@example.com", baseTime)))

	user.Activate("Bob", "hash", baseTime.Add(time.Minute))
	require.NoError(t, repo.Update(ctx, user))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, "Bob", got.FullName)
	assert.Equal(t, "hash", got.PasswordHash)

	missing := &domain.User{ID: 999, Email: "x@example.com"}
	assert.ErrorIs(t, repo.Update(ctx, missing), domain.ErrUserNotFound)

	list, err := repo.List(ctx, repository.ListOptions{Limit: 1, Descending: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "carol@example.com", list.Items[0].Email)
}

func TestOTPRepository_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewOTPRepository(db)
	ctx := context.Background()

	otp := domain.NewOTPChallenge("alice@example.com", "123456", baseTime, 10*time.Minute)
	require.NoError(t, repo.Create(ctx, otp))
	assert.NotZero(t, otp.ID)

	got, err := repo.GetByEmailAndCode(ctx, "alice@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, otp.ID, got.ID)
	assert.True(t, got.ExpiresAt.Equal(baseTime.Add(10*time.Minute)))

	_, err = repo.GetByEmailAndCode(ctx, "alice@example.com", "654321")
	assert.ErrorIs(t, err, domain.ErrOtpNotFound)

	_, err = repo.GetByEmailAndCode(ctx, "bob@example.com", "123456")
	assert.ErrorIs(t, err, domain.ErrOtpNotFound)

	require.NoError(t, repo.Delete(ctx, otp.ID))
	assert.ErrorIs(t, repo.Delete(ctx, otp.ID), domain.ErrOtpNotFound)
}

func TestOTPRepository_DeleteByEmail(t *testing.T) {
	db := newTestDB(t)
	repo := NewOTPRepository(db)
	ctx := context.Background()

	for _, code := range []string{"111111", "222222"} {
		require.NoError(t, repo.Create(ctx, domain.NewOTPChallenge("a@example.com", code, baseTime, time.Minute)))
	}
	require.NoError(t, repo.Create(ctx, domain.NewOTPChallenge("b@example.com", "333333", baseTime, time.Minute)))

	deleted, err := repo.DeleteByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	count, err := repo.CountByEmail(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestOTPRepository_DeleteExpired(t *testing.T) {
	db := newTestDB(t)
	repo := NewOTPRepository(db)
	ctx := context.Background()

	// Expires exactly at the cutoff, before it, and after it.
	require.NoError(t, repo.Create(ctx, domain.NewOTPChallenge("a@example.com", "111111", baseTime, 0)))
	require.NoError(t, repo.Create(ctx, domain.NewOTPChallenge("b@example.com", "222222", baseTime.Add(-time.Hour), time.Minute)))
	require.NoError(t, repo.Create(ctx, domain.NewOTPChallenge("c@example.com", "333333", baseTime, time.Millisecond)))

	deleted, err := repo.DeleteExpired(ctx, baseTime, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = repo.DeleteExpired(ctx, baseTime, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	count, err := repo.CountByEmail(ctx, "c@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDB_WithLockedTxRollsBack(t *testing.T) {
	db := newTestDB(t)
	repo := NewOTPRepository(db)
	ctx := context.Background()

	errBoom := errors.New("boom")
	err := db.WithLockedTx(ctx, "a@example.com", func(ctx context.Context) error {
		if err := repo.Create(ctx, domain.NewOTPChallenge("a@example.com", "111111", baseTime, time.Minute)); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	count, err := repo.CountByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDB_WithLockedTxSerializesReplace(t *testing.T) {
	db := newTestDB(t)
	repo := NewOTPRepository(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.WithLockedTx(ctx, "a@example.com", func(ctx context.Context) error {
				if _, err := repo.DeleteByEmail(ctx, "a@example.com"); err != nil {
					return err
				}
				return repo.Create(ctx, domain.NewOTPChallenge("a@example.com", "123456", baseTime, time.Minute))
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := repo.CountByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMigrator_Version(t *testing.T) {
	db := newTestDB(t)

	version, err := db.Migrator().Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestMigrator_LogsThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	db, err := NewDB(ctx, DefaultConfig(":memory:"), zerolog.New(&buf))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	sawMigration := false
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "unstructured log line %q", line)
		if msg, _ := entry["message"].(string); strings.Contains(msg, "00001_init.sql") {
			sawMigration = true
			assert.Equal(t, "migrate", entry["component"])
		}
	}
	assert.True(t, sawMigration)
}
