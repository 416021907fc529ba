package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 0\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, "newsletter-data", cfg.Ledger.TableName)
	assert.Equal(t, 5, cfg.Cleanup.Concurrency)
	assert.Equal(t, 3, cfg.Cleanup.MaxRetries)
	assert.Equal(t, 30, cfg.Sweeper.StalenessDays)
	assert.Equal(t, 300, cfg.Redis.TenantTTLSecond)
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: 10.0.0.5
aws:
  region: eu-west-1
ledger:
  table_name: newsletters
cleanup:
  concurrency: 10
sweeper:
  staleness_days: 45
  report_bucket: sweep-reports
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "newsletters", cfg.Ledger.TableName)
	assert.Equal(t, 10, cfg.Cleanup.Concurrency)
	assert.Equal(t, 45, cfg.Sweeper.StalenessDays)
	assert.Equal(t, "sweep-reports", cfg.Sweeper.ReportBucket)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "newsletter-data", cfg.Ledger.TableName)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	path := writeConfig(t, "ledger:\n  table_name: from-yaml\n")

	t.Setenv("LEDGER_TABLE_NAME", "from-env")
	t.Setenv("EVENT_BUS_NAME", "newsletter-bus")
	t.Setenv("SWEEP_STALENESS_DAYS", "60")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Ledger.TableName)
	assert.Equal(t, "newsletter-bus", cfg.Events.BusName)
	assert.Equal(t, 60, cfg.Sweeper.StalenessDays)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadFromEnv_InvalidStalenessIgnored(t *testing.T) {
	path := writeConfig(t, "sweeper:\n  staleness_days: 30\n")

	t.Setenv("SWEEP_STALENESS_DAYS", "not-a-number")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Sweeper.StalenessDays)
}
