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
	path := filepath.Join(t.TempDir(), "helix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ---------------------------------------------------------------------------
// TestLoad
// ---------------------------------------------------------------------------
func TestLoad(t *testing.T) {
	path := writeConfig(t, `
general:
  instance_id: helix-test
  log_level: debug
scanner:
  min_liquidity_sol: 10
  max_rug_score: 50
  max_top_holder_pct: 60
  scan_interval: 45s
  auto_scan: true
trading:
  default_buy_sol: 0.25
  tx_window: 100
control:
  listen_addr: ":9090"
  metrics_enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "helix-test", cfg.General.InstanceID)
	assert.Equal(t, "debug", cfg.General.LogLevel)
	assert.Equal(t, 10.0, cfg.Scanner.MinLiquiditySOL)
	assert.Equal(t, 45*time.Second, cfg.Scanner.ScanInterval)
	assert.Equal(t, 0.25, cfg.Trading.DefaultBuySOL)
	assert.Equal(t, 100, cfg.Trading.TxWindow)
	assert.Equal(t, ":9090", cfg.Control.ListenAddr)
	require.NotNil(t, cfg.Control.MetricsEnabled)
	assert.False(t, *cfg.Control.MetricsEnabled)

	// Untouched sections still get defaults.
	assert.Equal(t, "json", cfg.General.LogFormat)
	assert.NotEmpty(t, cfg.Source.DiscoveryURL)
	assert.NotEmpty(t, cfg.Feed.WSEndpoint)

	require.NoError(t, cfg.Validate())
}

// ---------------------------------------------------------------------------
// TestLoad_EnvExpansion
// ---------------------------------------------------------------------------
func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("HELIX_INSTANCE", "helix-prod-3")

	path := writeConfig(t, `
general:
  instance_id: ${HELIX_INSTANCE}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "helix-prod-3", cfg.General.InstanceID)
}

// ---------------------------------------------------------------------------
// TestLoad_Errors
// ---------------------------------------------------------------------------
func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "general: [broken")
		_, err := Load(path)
		assert.Error(t, err)
	})
}

// ---------------------------------------------------------------------------
// TestDefault
// ---------------------------------------------------------------------------
func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "helix-1", cfg.General.InstanceID)
	assert.Equal(t, "info", cfg.General.LogLevel)
	assert.Equal(t, 0.1, cfg.Trading.DefaultBuySOL)
	assert.Equal(t, 200, cfg.Trading.TxWindow)
	assert.Equal(t, ":8787", cfg.Control.ListenAddr)
	require.NotNil(t, cfg.Control.MetricsEnabled)
	assert.True(t, *cfg.Control.MetricsEnabled)
	assert.True(t, cfg.Scanner.AutoScan)

	require.NoError(t, cfg.Validate())
}

// ---------------------------------------------------------------------------
// TestConfig_Validate
// ---------------------------------------------------------------------------
func TestConfig_Validate(t *testing.T) {
	t.Run("scanner violation propagates", func(t *testing.T) {
		cfg := Default()
		cfg.Scanner.ScanInterval = time.Second
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive buy size", func(t *testing.T) {
		cfg := Default()
		cfg.Trading.DefaultBuySOL = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero tx window", func(t *testing.T) {
		cfg := Default()
		cfg.Trading.TxWindow = 0
		assert.Error(t, cfg.Validate())
	})
}
