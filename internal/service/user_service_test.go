package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/alexander-auth/internal/domain"
	"github.com/prn-tf/alexander-auth/internal/repository/memory"
)

func TestUserService_GetByEmail(t *testing.T) {
	store := memory.NewStore()
	defer store.Close()
	ctx := context.Background()
	now := time.Now()

	repos := store.Repositories()
	require.NoError(t, repos.User.Create(ctx, domain.NewVerifiedPlaceholder("a@x.com", now)))
	require.NoError(t, repos.OTP.Create(ctx, domain.NewOTPChallenge("a@x.com", "123456", now, time.Minute)))

	svc := NewUserService(repos.User, repos.OTP, zerolog.Nop())

	details, err := svc.GetByEmail(ctx, " A@X.com")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", details.User.Email)
	assert.True(t, details.User.IsVerified)
	assert.Equal(t, int64(1), details.PendingOTPs)

	_, err = svc.GetByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserService_List(t *testing.T) {
	store := memory.NewStore()
	defer store.Close()
	ctx := context.Background()

	repos := store.Repositories()
	for i := 0; i < 5; i++ {
		require.NoError(t, repos.User.Create(ctx, domain.NewVerifiedPlaceholder(fmt.Sprintf("u%d@x.com", i), time.Now())))
	}

	svc := NewUserService(repos.User, repos.OTP, zerolog.Nop())

	out, err := svc.List(ctx, ListUsersInput{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.TotalCount)
	require.Len(t, out.Users, 2)
	assert.Equal(t, "u1@x.com", out.Users[0].Email)

	out, err = svc.List(ctx, ListUsersInput{})
	require.NoError(t, err)
	assert.Len(t, out.Users, 5)
}

func TestUserService_StoreUnavailable(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Close())

	svc := NewUserService(store.Repositories().User, store.Repositories().OTP, zerolog.Nop())

	_, err := svc.List(context.Background(), ListUsersInput{})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
