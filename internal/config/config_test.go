package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
symbol: BTCUSDT
book:
  tick_size: 100000000
  price_precision: 2
  quantity_precision: 6
  sequence_validation: true
  max_price_distance: 500000000000
  stale_threshold_ms: 60000
preprocessor:
  tick_size: 100000000
  band_ticks: 5
  horizons: [5, 10, 20]
  time_window_ms: 300000
lifecycle:
  event_cooldown_ms: 5000
  min_initial_move_ticks: 3
  confirmation_timeout_ms: 15000
  error_rate_threshold: 0.2
absorption:
  tick_size: 100000000
  time_window_ms: 60000
  min_volume_for_ratio: 50
  min_agg_volume: 100
  min_passive_multiplier: 2.0
  max_absorption_ratio: 0.5
  absorption_threshold: 0.1
  spread_impact_threshold_ticks: 100
  institutional_volume_threshold: 1000000
  institutional_volume_boost: 0.1
  confluence_weight: 0.2
  alignment_weight: 0.1
  cross_timeframe_boost: 0.05
exhaustion:
  min_agg_volume: 100
  exhaustion_threshold: 0.8
accumulation:
  time_window_ms: 900000
  min_agg_volume: 100
  min_passive_multiplier: 2.0
  absorption_threshold: 0.1
iceberg:
  time_window_ms: 120000
  max_order_gap_ms: 5000
  min_order_count: 3
  min_total_size: 300
  max_active_patterns: 64
spoofing:
  tick_size: 100000000
  wall_ticks: 3
  min_wall_size: 500
  rapid_cancellation_ms: 2000
  max_cancellation_ratio: 0.7
  cancellation_window_ms: 30000
  min_executed_ratio_for_fill: 0.6
anomaly:
  sample_capacity: 2048
  time_window_ms: 300000
  normal_spread_bps: 5
  volume_imbalance_threshold: 0.6
  flow_imbalance_threshold: 0.6
  flow_imbalance_window_ms: 30000
  api_gap_ms: 5000
  whale_percentile: 0.99
  whale_cluster_window_ms: 60000
  whale_cluster_min_count: 3
  baseline_return_stddev_bps: 10
  volatility_baseline_multiplier: 2.5
  anomaly_cooldown_ms: 60000
  healthy_spread_bps: 50
  healthy_volatility_threshold_bps: 100
  health_lookback_ms: 300000
signal_manager:
  confidence_threshold: 0.5
  dedup_tolerance: 0.0005
  correlation_window_ms: 60000
  correlation_price_tolerance: 0.001
  target_pct: 0.01
  stop_pct: 0.005
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, int64(100_000_000), cfg.Book.TickSize)
	assert.Equal(t, [3]int64{5, 10, 20}, cfg.Preprocessor.Horizons)
	assert.Equal(t, 0.5, cfg.SignalMgr.ConfidenceThreshold)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeTemp(t, validYAML+"\nrogue_top_level_key: 1\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsNonPositiveTickSize(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Book.TickSize = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangeConfidenceThreshold(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.SignalMgr.ConfidenceThreshold = 1.5
	assert.Error(t, cfg.Validate())
}
