// Command orderflow runs one symbol's order-flow analytics engine: it
// ingests Binance aggTrade/depth websocket streams, maintains a fixed-point
// order book, enriches every trade with zone and passive-liquidity
// context, runs that enrichment through the detector bank and the anomaly/
// health monitor, and emits gated ConfirmedSignal/AnomalyEvent/
// OrderBookSnapshot values to websocket UI consumers via a bus →
// single-owner core goroutine → broadcaster pipeline.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/anomaly"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/broadcast"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/bus"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/config"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/detector"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/ingest"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/metrics"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/orderbook"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/preprocessor"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/signal"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/supervisor"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/telemetry"
)

const (
	tradeStreamURLFmt = "wss://fstream.binance.com/ws/%s@aggTrade"
	depthStreamURLFmt = "wss://fstream.binance.com/ws/%s@depth@100ms"
	cleanupInterval   = 30 * time.Second
	broadcastAddr     = ":8080"
)

func main() {
	configPath := flag.String("config", "configs/btcusdt.yaml", "path to the engine's YAML config")
	flag.Parse()

	log := telemetry.NewConsole(zerolog.InfoLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("engine exited with error")
		os.Exit(1)
	}
}

func run(cfg config.Config, log *telemetry.Logger) error {
	m := metrics.New()
	sup := supervisor.New(log)

	book := orderbook.New(cfg.Symbol, cfg.Book.TickSize,
		orderbook.WithSequenceValidation(cfg.Book.SequenceValidation),
		orderbook.WithMaxPriceDistance(cfg.Book.MaxPriceDistance),
		orderbook.WithStaleThresholdMs(cfg.Book.StaleThresholdMs),
	)

	pre := preprocessor.New(preprocessor.Config{
		TickSize:     cfg.Preprocessor.TickSize,
		BandTicks:    cfg.Preprocessor.BandTicks,
		Horizons:     cfg.Preprocessor.Horizons,
		TimeWindowMs: cfg.Preprocessor.TimeWindowMs,
	}, book)

	spoof := detector.NewSpoofing("spoofing", detector.SpoofingConfig{
		TickSize:                cfg.Spoofing.TickSize,
		WallTicks:               cfg.Spoofing.WallTicks,
		MinWallSize:             cfg.Spoofing.MinWallSize,
		RapidCancellationMs:     cfg.Spoofing.RapidCancellationMs,
		MaxCancellationRatio:    cfg.Spoofing.MaxCancellationRatio,
		CancellationWindowMs:    cfg.Spoofing.CancellationWindowMs,
		MinExecutedRatioForFill: cfg.Spoofing.MinExecutedRatioForFill,
	}, newBase("spoofing", cfg))

	absorption := detector.NewAbsorption("absorption", detector.AbsorptionConfig{
		TickSize:                     cfg.Absorption.TickSize,
		TimeWindowMs:                 cfg.Absorption.TimeWindowMs,
		MinVolumeForRatio:            cfg.Absorption.MinVolumeForRatio,
		MinAggVolume:                 cfg.Absorption.MinAggVolume,
		MinPassiveMultiplier:         cfg.Absorption.MinPassiveMultiplier,
		MaxAbsorptionRatio:           cfg.Absorption.MaxAbsorptionRatio,
		PriceEfficiencyThreshold:     cfg.Absorption.PriceEfficiencyThreshold,
		SpreadImpactThresholdTicks:   cfg.Absorption.SpreadImpactThresholdTicks,
		InstitutionalVolumeThreshold: cfg.Absorption.InstitutionalVolumeThreshold,
		InstitutionalVolumeBoost:     cfg.Absorption.InstitutionalVolumeBoost,
		ConfluenceWeight:             cfg.Absorption.ConfluenceWeight,
		AlignmentWeight:              cfg.Absorption.AlignmentWeight,
		CrossTimeframeBoost:          cfg.Absorption.CrossTimeframeBoost,
	}, newBase("absorption", cfg), spoof)

	exhaustion := detector.NewExhaustion("exhaustion", detector.ExhaustionConfig{
		MinAggVolume:        cfg.Exhaustion.MinAggVolume,
		ExhaustionThreshold: cfg.Exhaustion.ExhaustionThreshold,
	}, newBase("exhaustion", cfg))

	accumulation := detector.NewAccumulation("accumulation", detector.AccumulationConfig{
		TimeWindowMs:             cfg.Accumulation.TimeWindowMs,
		MinAggVolume:             cfg.Accumulation.MinAggVolume,
		MinPassiveMultiplier:     cfg.Accumulation.MinPassiveMultiplier,
		PriceEfficiencyThreshold: cfg.Accumulation.PriceEfficiencyThreshold,
	}, newBase("accumulation", cfg))

	iceberg := detector.NewIceberg("iceberg", detector.IcebergConfig{
		TimeWindowMs:      cfg.Iceberg.TimeWindowMs,
		MaxOrderGapMs:     cfg.Iceberg.MaxOrderGapMs,
		MinOrderCount:     cfg.Iceberg.MinOrderCount,
		MinTotalSize:      cfg.Iceberg.MinTotalSize,
		MaxActivePatterns: cfg.Iceberg.MaxActivePatterns,
	}, newBase("iceberg", cfg))

	anomalyDetector := anomaly.New(anomaly.Config{
		SampleCapacity:                cfg.Anomaly.SampleCapacity,
		TimeWindowMs:                  cfg.Anomaly.TimeWindowMs,
		NormalSpreadBps:               cfg.Anomaly.NormalSpreadBps,
		VolumeImbalanceThreshold:      cfg.Anomaly.VolumeImbalanceThreshold,
		FlowImbalanceThreshold:        cfg.Anomaly.FlowImbalanceThreshold,
		FlowImbalanceWindowMs:         cfg.Anomaly.FlowImbalanceWindowMs,
		ApiGapMs:                      cfg.Anomaly.ApiGapMs,
		WhalePercentile:               cfg.Anomaly.WhalePercentile,
		WhaleClusterWindowMs:          cfg.Anomaly.WhaleClusterWindowMs,
		WhaleClusterMinCount:          cfg.Anomaly.WhaleClusterMinCount,
		BaselineReturnStdDevBps:       cfg.Anomaly.BaselineReturnStdDevBps,
		VolatilityBaselineMultiplier:  cfg.Anomaly.VolatilityBaselineMultiplier,
		AnomalyCooldownMs:             cfg.Anomaly.AnomalyCooldownMs,
		HealthySpreadBps:              cfg.Anomaly.HealthySpreadBps,
		HealthyVolatilityThresholdBps: cfg.Anomaly.HealthyVolatilityThresholdBps,
		HealthLookbackMs:              cfg.Anomaly.HealthLookbackMs,
	})

	signalMgr := signal.New(signal.Config{
		ConfidenceThreshold:       cfg.SignalMgr.ConfidenceThreshold,
		CorrelationWindowMs:       cfg.SignalMgr.CorrelationWindowMs,
		CorrelationPriceTolerance: cfg.SignalMgr.CorrelationPriceTolerance,
		DedupToleranceFraction:    cfg.SignalMgr.DedupTolerance,
		TargetPct:                 cfg.SignalMgr.TargetPct,
		StopPct:                   cfg.SignalMgr.StopPct,
	})

	tradeBus := bus.New[model.AggTrade]()
	depthBus := bus.New[model.DepthUpdate]()

	tradeIngester := ingestTradeIngester(cfg.Symbol, tradeBus, log)
	depthIngester := ingestDepthIngester(cfg.Symbol, depthBus, log)
	sup.Go("ingest.trade", func(ctx context.Context) error { tradeIngester.Start(ctx); <-ctx.Done(); return nil })
	sup.Go("ingest.depth", func(ctx context.Context) error { depthIngester.Start(ctx); <-ctx.Done(); return nil })

	snapshotCh := make(chan model.OrderBookSnapshot, 256)
	signalCh := make(chan model.ConfirmedSignal, 256)
	anomalyCh := make(chan model.AnomalyEvent, 256)

	broadcaster := broadcast.NewBroadcaster(snapshotCh, signalCh, anomalyCh, log)
	sup.Go("broadcast", func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- broadcaster.Start(broadcastAddr) }()
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		}
	})

	detectors := []tradeDetector{absorption, exhaustion, accumulation, iceberg}

	snapshotFetcher := ingest.NewSnapshotFetcher(cfg.Symbol, log)

	core := &coreLoop{
		symbol:        cfg.Symbol,
		book:          book,
		pre:           pre,
		detectors:     detectors,
		spoof:         spoof,
		anomaly:       anomalyDetector,
		signals:       signalMgr,
		metrics:       m,
		log:           log.With("component", "core"),
		tradeCh:       tradeBus.Subscribe(1024),
		depthCh:       depthBus.Subscribe(1024),
		snapshotCh:    snapshotCh,
		signalCh:      signalCh,
		anomalyCh:     anomalyCh,
		fetchSnapshot: snapshotFetcher.Fetch,
	}
	sup.Go("core", core.run)

	sup.Ticker("cleanup", cleanupInterval, func() {
		now := time.Now().UnixMilli()
		book.PruneStale(now)
		for _, d := range detectors {
			d.Cleanup(now)
		}
		spoof.Cleanup(now)
	})

	log.Info().Str("symbol", cfg.Symbol).Msg("engine started")
	return sup.Wait()
}

func newBase(id string, cfg config.Config) *detector.Base {
	return detector.NewBase(id, cfg.Lifecycle.EventCooldownMs, cfg.Lifecycle.MinInitialMoveTicks,
		cfg.Book.TickSize, cfg.Lifecycle.ErrorRateThreshold)
}
