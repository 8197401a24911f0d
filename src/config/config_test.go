package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, []string{"AAPL", "GOOGL", "MSFT"}, cfg.Symbols)
	assert.Equal(t, 30*time.Second, cfg.RunDuration)
	assert.Empty(t, cfg.ImportFile)

	assert.Equal(t, 10000, cfg.Engine.TradeHistoryCapacity)
	assert.Equal(t, 1000, cfg.Engine.BookTradeCapacity)
	assert.Equal(t, 1000, cfg.Engine.LatencyWindowSize)
	assert.Equal(t, 65536, cfg.Engine.QueueCapacity)
	assert.Equal(t, 100, cfg.Engine.BatchSize)

	assert.Equal(t, 5, cfg.Traders.Count)
	assert.Equal(t, 100000.0, cfg.Traders.InitialCash)
	assert.Equal(t, int64(10), cfg.Traders.MinOrderSize)
	assert.Equal(t, int64(100), cfg.Traders.MaxOrderSize)
	assert.Equal(t, 0.02, cfg.Traders.Volatility)
	assert.Equal(t, 50, cfg.Traders.MinIntervalMs)
	assert.Equal(t, 500, cfg.Traders.MaxIntervalMs)

	assert.Empty(t, cfg.Export.Dir)
	assert.Equal(t, 10, cfg.Export.Depth)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `log_level: debug
symbols:
  - TSLA
run_duration: 5s
engine:
  queue_capacity: 1024
traders:
  count: 2
  initial_cash: 50000
export:
  dir: out
  depth: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "simulator.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"TSLA"}, cfg.Symbols)
	assert.Equal(t, 5*time.Second, cfg.RunDuration)
	assert.Equal(t, 1024, cfg.Engine.QueueCapacity)
	// unset keys keep their defaults
	assert.Equal(t, 100, cfg.Engine.BatchSize)
	assert.Equal(t, 2, cfg.Traders.Count)
	assert.Equal(t, 50000.0, cfg.Traders.InitialCash)
	assert.Equal(t, "out", cfg.Export.Dir)
	assert.Equal(t, 3, cfg.Export.Depth)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SIM_LOG_LEVEL", "warn")
	t.Setenv("SIM_TRADERS_COUNT", "8")
	t.Setenv("SIM_ENGINE_BATCH_SIZE", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 8, cfg.Traders.Count)
	assert.Equal(t, 250, cfg.Engine.BatchSize)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "simulator.yaml"),
		[]byte("traders: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}
