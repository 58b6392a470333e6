package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Load is process-global, so file, environment, and default handling are
// exercised in one pass.
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mailgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: test
database:
  driver: sqlite3
  dsn: ":memory:"
fetch:
  schedule: "0 * * * * *"
  body_limit: 4096
`), 0o600))
	t.Setenv("MAILGATE_LOGGING_VERBOSE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Same(t, cfg, Get())

	// File values.
	require.Equal(t, "test", cfg.App.Env)
	require.Equal(t, "sqlite3", cfg.Database.Driver)
	require.Equal(t, ":memory:", cfg.Database.DSN)
	require.Equal(t, "0 * * * * *", cfg.Fetch.Schedule)
	require.Equal(t, int64(4096), cfg.Fetch.BodyLimit)

	// Environment override.
	require.True(t, cfg.Logging.Verbose)

	// Defaults for everything unset.
	require.Equal(t, "mailgate", cfg.App.Name)
	require.Equal(t, 10, cfg.Database.MaxOpenConns)
	require.True(t, cfg.Database.AutoMigrate)
	require.Equal(t, 5*time.Second, cfg.Fetch.DialTimeout)
	require.Equal(t, 10*time.Minute, cfg.Fetch.TaskTimeout)
	require.Equal(t, int64(25*1024*1024), cfg.Fetch.AttachmentLimit)
}
