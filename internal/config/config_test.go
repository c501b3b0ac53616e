package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":5001", cfg.HTTP.Addr)
	assert.Equal(t, uint64(42), cfg.Generator.Seed)
	assert.Equal(t, 200, cfg.Generator.Customers)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Database.ConnectAttempts)
	assert.Equal(t, 3*time.Second, cfg.Database.RetryDelay)
	assert.Equal(t, 100, cfg.API.DefaultLimit)
	assert.False(t, cfg.API.LegacyHasMore)
	assert.Equal(t, "stripe", cfg.Loader.Schema)

	base, err := cfg.Generator.ParsedBaseDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), base)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte("database:\n  driver: sqlite\n  dsn: \"file::memory:\"\ngenerator:\n  customers: 10\n"), 0o600)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Generator.Customers)
	assert.Equal(t, 5, cfg.Database.ConnectAttempts)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BILLSB_HTTP_ADDR", ":9999")
	t.Setenv("BILLSB_DATABASE_DRIVER", "mysql")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, "mysql", cfg.Database.Driver)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("BILLSB_DATABASE_DRIVER", "oracle")

	_, err := Load("")
	assert.ErrorContains(t, err, "unsupported database driver")
}
