package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rapid.yaml")
	doc := `
inject:
  seed: 42
  num_flips: 5000
database:
  path: /tmp/other.db
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Inject.Seed)
	assert.Equal(t, 5000, cfg.Inject.NumFlips)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, "50s", cfg.Monitor.AlertInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RAPID_DB", "/tmp/env.db")
	t.Setenv("RAPID_SEED", "99")
	t.Setenv("RAPID_WORKERS", "4")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, int64(99), cfg.Inject.Seed)
	assert.Equal(t, 4, cfg.Parse.Workers)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "rapid.yaml")

	cfg := DefaultConfig()
	cfg.Inject.Seed = 7
	cfg.Parse.Workers = 2
	require.NoError(t, cfg.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("inject: ["), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
