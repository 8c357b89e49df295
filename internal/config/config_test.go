package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "krxflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "output", cfg.Paths.DataDir)
	assert.Equal(t, 20, cfg.Reports.TopCount)
	assert.Equal(t, "순매수도", cfg.Reports.LedgerDir)
	assert.Equal(t, "순매수", cfg.Reports.DailyDir)
	assert.Equal(t, "일별수급순위정리표.xlsx", cfg.Reports.SnapshotFile)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "0 30 16 * * MON-FRI", cfg.Schedule.Cron)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
paths:
  data_dir: /data/krx
reports:
  top_count: 30
fetch:
  requests_per_sec: 0.5
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/krx", cfg.Paths.DataDir)
	assert.Equal(t, 30, cfg.Reports.TopCount)
	assert.Equal(t, 0.5, cfg.Fetch.RequestsPerSec)
	// Unset file keys keep their defaults.
	assert.Equal(t, "local", cfg.Storage.Backend)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("KRX_PATHS_DATA_DIR", "/from/env")

	path := writeConfig(t, `
paths:
  data_dir: /from/file
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Paths.DataDir)
}

func TestValidationRejectsBadBackend(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: s3
`)

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestDriveBackendRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: drive
`)

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestInvalidURLRejected(t *testing.T) {
	path := writeConfig(t, `
fetch:
  otp_url: not-a-url
`)

	_, err := LoadFrom(path)
	assert.Error(t, err)
}
