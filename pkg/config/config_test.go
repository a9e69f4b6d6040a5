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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
sources:
  equity:
    symbols: [IBM]
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "clickhouse", cfg.Store.Backend)
	assert.Equal(t, 500, cfg.Store.BatchSize)
	assert.Equal(t, 3, cfg.Pipeline.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Pipeline.Retry.BaseDelay)
	assert.Equal(t, 2.0, cfg.Pipeline.Retry.Multiplier)
	assert.Equal(t, 0.20, cfg.Pipeline.JumpThresholds.Equity)
	assert.Equal(t, 0.50, cfg.Pipeline.JumpThresholds.Crypto)
	assert.Equal(t, 25, cfg.Sources.Equity.DailyBudget)
	assert.Equal(t, 12*time.Second, cfg.Sources.Equity.Pace)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoadRejectsEmptyUniverse(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: test\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instrument universe is empty")
}

func TestLoadRejectsMalformedPair(t *testing.T) {
	_, err := Load(writeConfig(t, `
sources:
  forex:
    pairs: [USDEUR]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BASE/TARGET")
}

func TestLoadWithEnvOverridesCredentials(t *testing.T) {
	t.Setenv("ALPHAVANTAGE_API_KEY", "k-equity")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")

	cfg, err := LoadWithEnv(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "k-equity", cfg.Sources.Equity.APIKey)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.KafkaEnabled())
}
