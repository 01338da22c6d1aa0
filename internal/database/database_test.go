package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/alexander-auth/internal/config"
)

func TestOpen_Memory(t *testing.T) {
	store, err := Open(context.Background(), config.DatabaseConfig{Driver: "memory"}, true, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, "memory", store.Driver)
	assert.NotNil(t, store.User)
	assert.NotNil(t, store.OTP)
	assert.NotNil(t, store.Tx)
	assert.NoError(t, store.Database.Ping(context.Background()))
}

func TestOpen_SQLiteMigrates(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "auth.db"),
	}

	store, err := Open(ctx, cfg, true, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	exists, err := store.User.ExistsByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestOpenMigrator_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "auth.db"),
	}

	m, conn, err := OpenMigrator(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer conn.Close()
	defer m.Close()

	require.NoError(t, m.Up(ctx))
	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	require.NoError(t, m.Down(ctx))
	version, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, false, zerolog.Nop())
	assert.Error(t, err)

	_, _, err = OpenMigrator(context.Background(), config.DatabaseConfig{Driver: "memory"}, zerolog.Nop())
	assert.Error(t, err)
}
