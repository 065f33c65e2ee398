package main

import (
	"context"
	"fmt"
	"time"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/anomaly"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/bus"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/detector"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/ingest"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/metrics"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/orderbook"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/preprocessor"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/signal"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/telemetry"
)

// tradeDetector is the common surface every concrete pattern detector
// exposes to the core loop.
type tradeDetector interface {
	OnEnrichedTrade(t model.EnrichedTrade) *model.SignalCandidate
	Cleanup(nowMs int64)
}

// coreLoop is the single goroutine that owns the order book and every
// detector's mutable state. It merges the trade and depth channels via
// select, so depth application and trade enrichment interleave in true
// arrival order without a lock.
type coreLoop struct {
	symbol    string
	book      *orderbook.Book
	pre       *preprocessor.Preprocessor
	detectors []tradeDetector
	spoof     *detector.Spoofing
	anomaly   *anomaly.Detector
	signals   *signal.Manager
	metrics   *metrics.Registry
	log       *telemetry.Logger

	tradeCh <-chan model.AggTrade
	depthCh <-chan model.DepthUpdate

	snapshotCh chan<- model.OrderBookSnapshot
	signalCh   chan<- model.ConfirmedSignal
	anomalyCh  chan<- model.AnomalyEvent

	lastSnapshotMs int64

	// fetchSnapshot retrieves a REST order-book snapshot to recover the
	// book before the main loop starts draining depthCh. Defaults to a
	// real Binance REST call in production; tests inject a fake.
	fetchSnapshot        func(ctx context.Context) (model.DepthSnapshot, error)
	recoverySettleWindow time.Duration
	maxRecoveryAttempts  int
}

const snapshotIntervalMs = 1000

const (
	defaultRecoverySettleWindow = 2 * time.Second
	defaultMaxRecoveryAttempts  = 5
)

// run recovers the order book from a REST snapshot, then drains both
// channels until ctx is cancelled. rolling-window/detector state lives
// only in memory for this process's lifetime; on cancellation the core
// loop processes whatever is already queued on both channels, then
// returns.
func (c *coreLoop) run(ctx context.Context) error {
	if err := c.recover(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case update := <-c.depthCh:
					c.applyDepth(update)
				case trade := <-c.tradeCh:
					c.processTrade(trade)
				default:
					return nil
				}
			}
		case update := <-c.depthCh:
			c.applyDepth(update)
		case trade := <-c.tradeCh:
			c.processTrade(trade)
		}
	}
}

// recover buffers depth updates for a settle window while the snapshot
// fetch is in flight, then hands the book the snapshot plus the queued
// updates via Book.Recover. It retries on a failed fetch or a sequence
// gap against the snapshot, since the diff-depth stream may have moved
// on by the time the REST call returns.
func (c *coreLoop) recover(ctx context.Context) error {
	settle := c.recoverySettleWindow
	if settle <= 0 {
		settle = defaultRecoverySettleWindow
	}
	attempts := c.maxRecoveryAttempts
	if attempts <= 0 {
		attempts = defaultMaxRecoveryAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		queued, err := c.bufferDepthFor(ctx, settle)
		if err != nil {
			return err
		}

		snapshot, err := c.fetchSnapshot(ctx)
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("snapshot fetch failed, retrying recovery")
			continue
		}

		if err := c.book.Recover(snapshot, queued); err != nil {
			lastErr = err
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("book recovery failed, retrying")
			continue
		}

		c.log.Info().Int("attempt", attempt).Msg("order book recovered")
		return nil
	}

	return fmt.Errorf("core: order book recovery failed after %d attempts: %w", attempts, lastErr)
}

// bufferDepthFor drains depthCh into a slice for window, so no update
// arriving during recovery is lost — Book.Recover needs them to replay
// forward from the snapshot's lastUpdateId.
func (c *coreLoop) bufferDepthFor(ctx context.Context, window time.Duration) ([]model.DepthUpdate, error) {
	var queued []model.DepthUpdate
	timer := time.NewTimer(window)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return queued, nil
		case u := <-c.depthCh:
			queued = append(queued, u)
		}
	}
}

func (c *coreLoop) applyDepth(update model.DepthUpdate) {
	if err := c.book.ApplyDepth(update); err != nil {
		c.metrics.BookErrors.WithLabelValues(c.symbol).Inc()
		c.log.Warn().Err(err).Msg("depth application failed")
		return
	}
	c.book.PurgeCrossedLevels()

	best, _ := c.book.BestBid()
	for _, row := range update.Bids {
		c.spoof.OnLevelUpdate(model.SideBuy, row.Price, row.Qty, update.EventTimeMs, best)
	}
	bestAsk, _ := c.book.BestAsk()
	for _, row := range update.Asks {
		c.spoof.OnLevelUpdate(model.SideSell, row.Price, row.Qty, update.EventTimeMs, bestAsk)
	}

	c.maybePublishSnapshot(update.EventTimeMs)
}

func (c *coreLoop) processTrade(trade model.AggTrade) {
	start := time.Now()
	enriched := c.pre.OnTrade(trade)

	c.spoof.OnTradeExecution(trade.Price, trade.Qty, trade.AggressiveSide())

	for _, d := range c.detectors {
		if cand := d.OnEnrichedTrade(enriched); cand != nil {
			c.metrics.DetectorEmissions.WithLabelValues(cand.DetectorID).Inc()
			c.confirmAndPublish(*cand)
		}
	}

	for _, event := range c.anomaly.OnTrade(enriched) {
		c.metrics.AnomalyCount.WithLabelValues(string(event.Type), string(event.Severity)).Inc()
		select {
		case c.anomalyCh <- event:
		default:
			c.metrics.QueueOverflows.WithLabelValues("anomaly").Inc()
		}
	}

	c.metrics.TradeLatency.Observe(time.Since(start).Seconds())
}

func (c *coreLoop) confirmAndPublish(cand model.SignalCandidate) {
	spreadBps, volBps := 0.0, 0.0
	if sp := c.book.Spread(); sp.Valid {
		if mid := c.book.MidPrice(); mid.Valid && mid.Value != 0 {
			spreadBps = float64(sp.Value) / float64(mid.Value) * 10_000
		}
	}
	health := c.anomaly.MarketHealth(cand.TsMs, spreadBps, volBps)

	confirmed, reason := c.signals.Process(cand, health)
	if confirmed == nil {
		c.metrics.SignalsDropped.WithLabelValues(string(reason)).Inc()
		c.log.Debug().Str("detector_id", cand.DetectorID).Str("reason", string(reason)).Msg("signal dropped")
		return
	}
	c.metrics.SignalsConfirmed.Inc()

	select {
	case c.signalCh <- *confirmed:
	default:
		c.metrics.QueueOverflows.WithLabelValues("signal").Inc()
	}
}

func (c *coreLoop) maybePublishSnapshot(nowMs int64) {
	if nowMs-c.lastSnapshotMs < snapshotIntervalMs {
		return
	}
	c.lastSnapshotMs = nowMs

	levels := c.book.Snapshot()
	out := make([]model.OrderBookSnapshotLevel, len(levels))
	for i, lvl := range levels {
		out[i] = model.OrderBookSnapshotLevel{Price: lvl.Price, BidQty: lvl.BidQty, AskQty: lvl.AskQty}
	}
	bestBid, _ := c.book.BestBid()
	bestAsk, _ := c.book.BestAsk()

	snapshot := model.OrderBookSnapshot{
		Symbol:  c.symbol,
		Levels:  out,
		BestBid: bestBid,
		BestAsk: bestAsk,
		TsMs:    nowMs,
	}

	select {
	case c.snapshotCh <- snapshot:
	default:
		c.metrics.QueueOverflows.WithLabelValues("snapshot").Inc()
	}
}

func ingestTradeIngester(symbol string, b *bus.Bus[model.AggTrade], log *telemetry.Logger) *ingest.TradeIngester {
	url := fmt.Sprintf(tradeStreamURLFmt, streamSymbol(symbol))
	return ingest.NewTradeIngester(url, b, log)
}

func ingestDepthIngester(symbol string, b *bus.Bus[model.DepthUpdate], log *telemetry.Logger) *ingest.DepthIngester {
	url := fmt.Sprintf(depthStreamURLFmt, streamSymbol(symbol))
	return ingest.NewDepthIngester(url, b, log)
}

// streamSymbol lowercases the configured symbol for Binance's stream
// path convention (e.g. "BTCUSDT" -> "btcusdt").
func streamSymbol(symbol string) string {
	out := make([]byte, len(symbol))
	for i := 0; i < len(symbol); i++ {
		ch := symbol[i]
		if ch >= 'A' && ch <= 'Z' {
			ch += 'a' - 'A'
		}
		out[i] = ch
	}
	return string(out)
}
