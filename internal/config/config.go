// Package config loads and validates the engine's configuration. Every
// detector gets an immutable value struct handed to its constructor —
// there are no package-level config globals anywhere in internal/.
// Loading is strict: an unrecognized key in the YAML file
// is a startup error, not a silently-ignored typo.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// BookConfig configures OrderBookState construction.
type BookConfig struct {
	TickSize           int64 `mapstructure:"tick_size"`
	PricePrecision     int32 `mapstructure:"price_precision"`
	QuantityPrecision  int32 `mapstructure:"quantity_precision"`
	SequenceValidation bool  `mapstructure:"sequence_validation"`
	MaxPriceDistance   int64 `mapstructure:"max_price_distance"`
	StaleThresholdMs   int64 `mapstructure:"stale_threshold_ms"`
}

// PreprocessorConfig configures OrderFlowPreprocessor and ZoneAggregator.
type PreprocessorConfig struct {
	TickSize     int64    `mapstructure:"tick_size"`
	BandTicks    int64    `mapstructure:"band_ticks"`
	Horizons     [3]int64 `mapstructure:"horizons"`
	TimeWindowMs int64    `mapstructure:"time_window_ms"`
}

// AbsorptionConfig is the validated, immutable AbsorptionDetector config.
type AbsorptionConfig struct {
	TickSize                     int64   `mapstructure:"tick_size"`
	TimeWindowMs                 int64   `mapstructure:"time_window_ms"`
	MinVolumeForRatio            int64   `mapstructure:"min_volume_for_ratio"`
	MinAggVolume                 int64   `mapstructure:"min_agg_volume"`
	MinPassiveMultiplier         float64 `mapstructure:"min_passive_multiplier"`
	MaxAbsorptionRatio           float64 `mapstructure:"max_absorption_ratio"`
	PriceEfficiencyThreshold     float64 `mapstructure:"absorption_threshold"`
	SpreadImpactThresholdTicks   int64   `mapstructure:"spread_impact_threshold_ticks"`
	InstitutionalVolumeThreshold int64   `mapstructure:"institutional_volume_threshold"`
	InstitutionalVolumeBoost     float64 `mapstructure:"institutional_volume_boost"`
	ConfluenceWeight             float64 `mapstructure:"confluence_weight"`
	AlignmentWeight              float64 `mapstructure:"alignment_weight"`
	CrossTimeframeBoost          float64 `mapstructure:"cross_timeframe_boost"`
}

// ExhaustionConfig is the validated ExhaustionDetector config.
type ExhaustionConfig struct {
	MinAggVolume        int64   `mapstructure:"min_agg_volume"`
	ExhaustionThreshold float64 `mapstructure:"exhaustion_threshold"`
}

// AccumulationConfig is the validated AccumulationDetector config.
type AccumulationConfig struct {
	TimeWindowMs             int64   `mapstructure:"time_window_ms"`
	MinAggVolume             int64   `mapstructure:"min_agg_volume"`
	MinPassiveMultiplier     float64 `mapstructure:"min_passive_multiplier"`
	PriceEfficiencyThreshold float64 `mapstructure:"absorption_threshold"`
}

// IcebergConfig is the validated IcebergDetector config.
type IcebergConfig struct {
	TimeWindowMs      int64 `mapstructure:"time_window_ms"`
	MaxOrderGapMs     int64 `mapstructure:"max_order_gap_ms"`
	MinOrderCount     int   `mapstructure:"min_order_count"`
	MinTotalSize      int64 `mapstructure:"min_total_size"`
	MaxActivePatterns int   `mapstructure:"max_active_patterns"`
}

// SpoofingConfig is the validated SpoofingDetector config.
type SpoofingConfig struct {
	TickSize                int64   `mapstructure:"tick_size"`
	WallTicks               int64   `mapstructure:"wall_ticks"`
	MinWallSize             int64   `mapstructure:"min_wall_size"`
	RapidCancellationMs     int64   `mapstructure:"rapid_cancellation_ms"`
	MaxCancellationRatio    float64 `mapstructure:"max_cancellation_ratio"`
	CancellationWindowMs    int64   `mapstructure:"cancellation_window_ms"`
	MinExecutedRatioForFill float64 `mapstructure:"min_executed_ratio_for_fill"`
}

// DetectorLifecycleConfig is the shared DetectorBase config: cooldown,
// confirmation window, and error-isolation threshold.
type DetectorLifecycleConfig struct {
	EventCooldownMs       int64   `mapstructure:"event_cooldown_ms"`
	MinInitialMoveTicks   int64   `mapstructure:"min_initial_move_ticks"`
	ConfirmationTimeoutMs int64   `mapstructure:"confirmation_timeout_ms"`
	ErrorRateThreshold    float64 `mapstructure:"error_rate_threshold"`
}

// AnomalyConfig is the validated AnomalyDetector/MarketHealth config.
type AnomalyConfig struct {
	SampleCapacity                int     `mapstructure:"sample_capacity"`
	TimeWindowMs                  int64   `mapstructure:"time_window_ms"`
	NormalSpreadBps               float64 `mapstructure:"normal_spread_bps"`
	VolumeImbalanceThreshold      float64 `mapstructure:"volume_imbalance_threshold"`
	FlowImbalanceThreshold        float64 `mapstructure:"flow_imbalance_threshold"`
	FlowImbalanceWindowMs         int64   `mapstructure:"flow_imbalance_window_ms"`
	ApiGapMs                      int64   `mapstructure:"api_gap_ms"`
	WhalePercentile               float64 `mapstructure:"whale_percentile"`
	WhaleClusterWindowMs          int64   `mapstructure:"whale_cluster_window_ms"`
	WhaleClusterMinCount          int     `mapstructure:"whale_cluster_min_count"`
	BaselineReturnStdDevBps       float64 `mapstructure:"baseline_return_stddev_bps"`
	VolatilityBaselineMultiplier  float64 `mapstructure:"volatility_baseline_multiplier"`
	AnomalyCooldownMs             int64   `mapstructure:"anomaly_cooldown_ms"`
	HealthySpreadBps              float64 `mapstructure:"healthy_spread_bps"`
	HealthyVolatilityThresholdBps float64 `mapstructure:"healthy_volatility_threshold_bps"`
	HealthLookbackMs              int64   `mapstructure:"health_lookback_ms"`
}

// SignalManagerConfig is the validated SignalManager config.
type SignalManagerConfig struct {
	ConfidenceThreshold       float64 `mapstructure:"confidence_threshold"`
	DedupTolerance            float64 `mapstructure:"dedup_tolerance"`
	CorrelationWindowMs       int64   `mapstructure:"correlation_window_ms"`
	CorrelationPriceTolerance float64 `mapstructure:"correlation_price_tolerance"`
	TargetPct                 float64 `mapstructure:"target_pct"`
	StopPct                   float64 `mapstructure:"stop_pct"`
}

// Config is the full, validated configuration for one symbol engine.
type Config struct {
	Symbol       string                  `mapstructure:"symbol"`
	Book         BookConfig              `mapstructure:"book"`
	Preprocessor PreprocessorConfig      `mapstructure:"preprocessor"`
	Lifecycle    DetectorLifecycleConfig `mapstructure:"lifecycle"`
	Absorption   AbsorptionConfig        `mapstructure:"absorption"`
	Exhaustion   ExhaustionConfig        `mapstructure:"exhaustion"`
	Accumulation AccumulationConfig      `mapstructure:"accumulation"`
	Iceberg      IcebergConfig           `mapstructure:"iceberg"`
	Spoofing     SpoofingConfig          `mapstructure:"spoofing"`
	Anomaly      AnomalyConfig           `mapstructure:"anomaly"`
	SignalMgr    SignalManagerConfig     `mapstructure:"signal_manager"`
}

// Load reads and strictly decodes path (YAML) into a Config, rejecting
// any key not named by a `mapstructure` tag above, then validates it.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: strict decode %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: validate %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the invariants the rest of the core assumes hold for
// every numeric config field (positive tick sizes, sane thresholds).
// Called once at startup; a failure here is an unrecoverable
// initialization error.
func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol must not be empty")
	}
	if c.Book.TickSize <= 0 {
		return fmt.Errorf("book.tick_size must be positive, got %d", c.Book.TickSize)
	}
	if c.Preprocessor.TickSize <= 0 {
		return fmt.Errorf("preprocessor.tick_size must be positive, got %d", c.Preprocessor.TickSize)
	}
	for _, h := range c.Preprocessor.Horizons {
		if h <= 0 {
			return fmt.Errorf("preprocessor.horizons entries must be positive, got %d", h)
		}
	}
	if c.Lifecycle.EventCooldownMs < 0 {
		return fmt.Errorf("lifecycle.event_cooldown_ms must be non-negative")
	}
	if c.Lifecycle.ErrorRateThreshold <= 0 || c.Lifecycle.ErrorRateThreshold > 1 {
		return fmt.Errorf("lifecycle.error_rate_threshold must be in (0, 1], got %f", c.Lifecycle.ErrorRateThreshold)
	}
	if c.SignalMgr.ConfidenceThreshold < 0 || c.SignalMgr.ConfidenceThreshold > 1 {
		return fmt.Errorf("signal_manager.confidence_threshold must be in [0, 1], got %f", c.SignalMgr.ConfidenceThreshold)
	}
	if c.Iceberg.MaxActivePatterns <= 0 {
		return fmt.Errorf("iceberg.max_active_patterns must be positive")
	}
	if c.Spoofing.MinExecutedRatioForFill < 0 || c.Spoofing.MinExecutedRatioForFill > 1 {
		return fmt.Errorf("spoofing.min_executed_ratio_for_fill must be in [0, 1], got %f", c.Spoofing.MinExecutedRatioForFill)
	}
	return nil
}
