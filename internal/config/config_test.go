package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ALEXANDER_AUTH_TOKEN_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 6, cfg.OTP.Length)
	assert.Equal(t, "Your Verification OTP", cfg.OTP.Subject)
	assert.False(t, cfg.SMTP.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9100
database:
  driver: sqlite
  path: /tmp/auth.db
otp:
  ttl: 5m
auth:
  token_secret: "` + testSecret + `"
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("ALEXANDER_OTP_LENGTH", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/auth.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 8, cfg.OTP.Length)
}

func TestLoad_MissingSecretFailsFast(t *testing.T) {
	t.Setenv("ALEXANDER_AUTH_TOKEN_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.token_secret")
}

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Port: 8000},
		Database: DatabaseConfig{Driver: "memory"},
		Auth: AuthConfig{
			TokenSecret: testSecret,
			TokenTTL:    30 * time.Minute,
			BcryptCost:  10,
		},
		OTP: OTPConfig{
			TTL:         10 * time.Minute,
			Length:      6,
			SendTimeout: time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "short secret",
			mutate:  func(c *Config) { c.Auth.TokenSecret = "short" },
			wantErr: "at least 32 bytes",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "database.driver",
		},
		{
			name: "postgres url overrides host",
			mutate: func(c *Config) {
				c.Database.Driver = "postgres"
				c.Database.URL = "postgres://localhost/alexander"
			},
		},
		{
			name:    "postgres without host",
			mutate:  func(c *Config) { c.Database.Driver = "postgres" },
			wantErr: "database.host",
		},
		{
			name: "smtp bad tls",
			mutate: func(c *Config) {
				c.SMTP = SMTPConfig{Enabled: true, Host: "mail", From: "a@b.c", TLS: "ssl3"}
			},
			wantErr: "smtp.tls",
		},
		{
			name:    "otp length",
			mutate:  func(c *Config) { c.OTP.Length = 2 },
			wantErr: "otp.length",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", c.DSN())

	c.URL = "postgres://x"
	assert.Equal(t, "postgres://x", c.DSN())
}

func TestLoadForTools_NoSecretRequired(t *testing.T) {
	t.Setenv("ALEXANDER_AUTH_TOKEN_SECRET", "")
	t.Setenv("ALEXANDER_DATABASE_DRIVER", "sqlite")
	t.Setenv("ALEXANDER_DATABASE_PATH", filepath.Join(t.TempDir(), "auth.db"))

	cfg, err := LoadForTools("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)

	t.Setenv("ALEXANDER_DATABASE_DRIVER", "mysql")
	_, err = LoadForTools("")
	assert.Error(t, err)
}
