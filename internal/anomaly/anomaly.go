// Package anomaly implements AnomalyDetector and the market-health
// aggregation it feeds. It is the one detector whose purpose is not to
// emit a trading signal but to gate SignalManager and produce the
// AnomalyEvent contract for the external alerter.
package anomaly

import (
	"sort"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/fixedmath"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/rollingwindow"
)

// Config is the immutable configuration for one AnomalyDetector.
type Config struct {
	SampleCapacity                int
	TimeWindowMs                  int64
	NormalSpreadBps               float64
	VolumeImbalanceThreshold      float64
	FlowImbalanceThreshold        float64
	FlowImbalanceWindowMs         int64
	ApiGapMs                      int64
	WhalePercentile               float64 // e.g. 0.99
	WhaleClusterWindowMs          int64
	WhaleClusterMinCount          int
	BaselineReturnStdDevBps       float64
	VolatilityBaselineMultiplier  float64
	AnomalyCooldownMs             int64
	HealthySpreadBps              float64
	HealthyVolatilityThresholdBps float64
	HealthLookbackMs              int64
}

type tradeSnapshot struct {
	tsMs       int64
	price      int64
	qty        int64
	bestBidVol int64
	bestAskVol int64
	side       model.Side
}

func (s tradeSnapshot) TimestampMs() int64 { return s.tsMs }

type anomalyRecord struct {
	tsMs     int64
	typ      model.AnomalyType
	severity model.AnomalySeverity
}

func (r anomalyRecord) TimestampMs() int64 { return r.tsMs }

// Detector maintains rolling trade/anomaly history and computes the
// seven anomaly classes. It is thread-local to the core loop, like every
// detector.
type Detector struct {
	cfg Config

	samples *rollingwindow.Window[tradeSnapshot]
	history *rollingwindow.Window[anomalyRecord]

	lastEmitMs       map[model.AnomalyType]int64
	lastEmitSeverity map[model.AnomalyType]model.AnomalySeverity
	lastTradeTsMs    int64
	hasPriorTrade    bool
}

// New constructs an AnomalyDetector.
func New(cfg Config) *Detector {
	if cfg.SampleCapacity <= 0 {
		cfg.SampleCapacity = 2048
	}
	return &Detector{
		cfg:              cfg,
		samples:          rollingwindow.New[tradeSnapshot](cfg.SampleCapacity),
		history:          rollingwindow.New[anomalyRecord](512),
		lastEmitMs:       make(map[model.AnomalyType]int64),
		lastEmitSeverity: make(map[model.AnomalyType]model.AnomalySeverity),
	}
}

// OnTrade folds one enriched trade's observations into the rolling
// windows and returns every anomaly that fires and survives dedup.
func (d *Detector) OnTrade(t model.EnrichedTrade) []model.AnomalyEvent {
	var events []model.AnomalyEvent

	if d.hasPriorTrade {
		if gap := t.TsMs - d.lastTradeTsMs; gap > d.cfg.ApiGapMs {
			if ev := d.checkAPIGap(gap, t); ev != nil {
				events = append(events, *ev)
			}
		}
	}
	d.lastTradeTsMs = t.TsMs
	d.hasPriorTrade = true

	d.samples.Add(tradeSnapshot{
		tsMs:       t.TsMs,
		price:      t.Price,
		qty:        t.Qty,
		bestBidVol: t.PassiveBidVolAtPrice,
		bestAskVol: t.PassiveAskVolAtPrice,
		side:       t.AggressiveSide(),
	})
	d.samples.EvictOlderThan(t.TsMs - d.cfg.TimeWindowMs)

	if ev := d.checkFlashCrash(t); ev != nil {
		events = append(events, *ev)
	}
	if ev := d.checkLiquidityVoid(t); ev != nil {
		events = append(events, *ev)
	}
	if ev := d.checkExtremeVolatility(t); ev != nil {
		events = append(events, *ev)
	}
	if ev := d.checkWhaleActivity(t); ev != nil {
		events = append(events, *ev)
	}
	if ev := d.checkOrderbookImbalance(t); ev != nil {
		events = append(events, *ev)
	}
	if ev := d.checkFlowImbalance(t); ev != nil {
		events = append(events, *ev)
	}

	return events
}

func (d *Detector) samplePrices() []int64 {
	all := d.samples.All()
	out := make([]int64, len(all))
	for i, s := range all {
		out[i] = s.price
	}
	return out
}

func (d *Detector) checkFlashCrash(t model.EnrichedTrade) *model.AnomalyEvent {
	prices := d.samplePrices()
	if len(prices) < 10 {
		return nil
	}
	mean := fixedmath.Mean(prices)
	stddev := fixedmath.StdDev(prices)
	if !mean.Valid || !stddev.Valid || stddev.Value == 0 {
		return nil
	}
	z := float64(t.Price-mean.Value) / float64(stddev.Value)
	absZ := z
	if absZ < 0 {
		absZ = -absZ
	}
	if absZ <= 3 {
		return nil
	}
	severity := model.SeverityMedium
	switch {
	case absZ >= 5:
		severity = model.SeverityCritical
	case absZ >= 4:
		severity = model.SeverityHigh
	}
	return d.emit(model.AnomalyFlashCrash, severity, model.RecommendPause, t.Price, t.Price, t.TsMs,
		map[string]string{"z_score": formatFloat(z)})
}

func (d *Detector) checkLiquidityVoid(t model.EnrichedTrade) *model.AnomalyEvent {
	spread := fixedmath.CalcSpread(t.BestBid, t.BestAsk)
	mid := fixedmath.CalcMidPrice(t.BestBid, t.BestAsk, 1)
	if !spread.Valid || !mid.Valid || mid.Value == 0 {
		return nil
	}
	spreadBps := float64(spread.Value) / float64(mid.Value) * 10_000
	if spreadBps <= d.cfg.NormalSpreadBps*5 {
		return nil
	}

	all := d.samples.All()
	if len(all) == 0 {
		return nil
	}
	var sumVol int64
	for _, s := range all {
		sumVol += s.bestBidVol + s.bestAskVol
	}
	avgVol := float64(sumVol) / float64(len(all))
	currentVol := float64(t.PassiveBidVolAtPrice + t.PassiveAskVolAtPrice)
	if avgVol == 0 || currentVol >= avgVol*0.5 {
		return nil
	}

	return d.emit(model.AnomalyLiquidityVoid, model.SeverityHigh, model.RecommendReduceSize, t.BestBid, t.BestAsk, t.TsMs,
		map[string]string{"spread_bps": formatFloat(spreadBps)})
}

func (d *Detector) checkAPIGap(gapMs int64, t model.EnrichedTrade) *model.AnomalyEvent {
	return d.emit(model.AnomalyFeedGap, model.SeverityHigh, model.RecommendPause, t.Price, t.Price, t.TsMs,
		map[string]string{"gap_ms": formatInt(gapMs)})
}

func (d *Detector) checkExtremeVolatility(t model.EnrichedTrade) *model.AnomalyEvent {
	all := d.samples.All()
	if len(all) < 3 {
		return nil
	}
	returns := make([]int64, 0, len(all)-1)
	for i := 1; i < len(all); i++ {
		prev := all[i-1].price
		if prev == 0 {
			continue
		}
		r := (all[i].price - prev) * 10_000 / prev // bps return
		returns = append(returns, r)
	}
	stddev := fixedmath.StdDev(returns)
	if !stddev.Valid {
		return nil
	}
	baseline := d.cfg.BaselineReturnStdDevBps * d.cfg.VolatilityBaselineMultiplier
	if baseline <= 0 || float64(stddev.Value) <= baseline {
		return nil
	}
	return d.emit(model.AnomalyExtremeVolatility, model.SeverityMedium, model.RecommendReduceSize, t.Price, t.Price, t.TsMs,
		map[string]string{"stddev_bps": formatInt(stddev.Value)})
}

func (d *Detector) checkWhaleActivity(t model.EnrichedTrade) *model.AnomalyEvent {
	all := d.samples.All()
	if len(all) < 20 {
		return nil
	}
	qtys := make([]int64, len(all))
	for i, s := range all {
		qtys[i] = s.qty
	}
	sort.Slice(qtys, func(i, j int) bool { return qtys[i] < qtys[j] })
	idx := int(float64(len(qtys)-1) * d.cfg.WhalePercentile)
	percentileQty := qtys[idx]
	if t.Qty < percentileQty {
		return nil
	}

	clusterCutoff := t.TsMs - d.cfg.WhaleClusterWindowMs
	clusterCount := 0
	for _, s := range all {
		if s.tsMs >= clusterCutoff && s.qty >= percentileQty {
			clusterCount++
		}
	}

	severity := model.SeverityMedium
	if clusterCount >= d.cfg.WhaleClusterMinCount {
		severity = model.SeverityHigh
	}
	return d.emit(model.AnomalyWhaleActivity, severity, model.RecommendReduceSize, t.Price, t.Price, t.TsMs,
		map[string]string{"qty": formatInt(t.Qty), "cluster_count": formatInt(int64(clusterCount))})
}

func (d *Detector) checkOrderbookImbalance(t model.EnrichedTrade) *model.AnomalyEvent {
	bid := t.ZonePassiveBidVol
	ask := t.ZonePassiveAskVol
	total := bid + ask
	if total == 0 {
		return nil
	}
	diff := bid - ask
	if diff < 0 {
		diff = -diff
	}
	ratio := float64(diff) / float64(total)
	if ratio <= d.cfg.VolumeImbalanceThreshold {
		return nil
	}
	return d.emit(model.AnomalyOBImbalance, model.SeverityInfo, model.RecommendContinue, t.BestBid, t.BestAsk, t.TsMs,
		map[string]string{"ratio": formatFloat(ratio)})
}

func (d *Detector) checkFlowImbalance(t model.EnrichedTrade) *model.AnomalyEvent {
	cutoff := t.TsMs - d.cfg.FlowImbalanceWindowMs
	all := d.samples.All()
	var buyVol, sellVol int64
	for _, s := range all {
		if s.tsMs < cutoff {
			continue
		}
		if s.side == model.SideBuy {
			buyVol += s.qty
		} else {
			sellVol += s.qty
		}
	}
	total := buyVol + sellVol
	if total == 0 {
		return nil
	}
	diff := buyVol - sellVol
	if diff < 0 {
		diff = -diff
	}
	ratio := float64(diff) / float64(total)
	if ratio <= d.cfg.FlowImbalanceThreshold {
		return nil
	}
	return d.emit(model.AnomalyFlowImbalance, model.SeverityInfo, model.RecommendContinue, t.Price, t.Price, t.TsMs,
		map[string]string{"ratio": formatFloat(ratio)})
}

// emit applies the per-type cooldown with critical-supersedes-non-
// critical override and records the event in history for MarketHealth.
func (d *Detector) emit(typ model.AnomalyType, severity model.AnomalySeverity, action model.Recommendation, priceMin, priceMax, tsMs int64, details map[string]string) *model.AnomalyEvent {
	if lastMs, had := d.lastEmitMs[typ]; had {
		withinCooldown := tsMs-lastMs < d.cfg.AnomalyCooldownMs
		if withinCooldown {
			priorSeverity := d.lastEmitSeverity[typ]
			supersedes := severity == model.SeverityCritical && priorSeverity != model.SeverityCritical
			if !supersedes {
				return nil
			}
		}
	}

	d.lastEmitMs[typ] = tsMs
	d.lastEmitSeverity[typ] = severity
	d.history.Add(anomalyRecord{tsMs: tsMs, typ: typ, severity: severity})

	event := model.AnomalyEvent{
		Type:               typ,
		Severity:           severity,
		DetectedAtMs:       tsMs,
		AffectedPriceRange: model.PriceRange{Min: priceMin, Max: priceMax},
		RecommendedAction:  action,
		Details:            details,
	}
	return &event
}

// infrastructureTypes are anomalies reflecting a broken/degraded feed
// rather than a market condition — market_health() treats any of these
// in the lookback window as automatically unhealthy.
var infrastructureTypes = map[model.AnomalyType]bool{
	model.AnomalyFeedGap:       true,
	model.AnomalyLiquidityVoid: true,
}

// MarketHealth aggregates recent anomaly history into the health gate
// SignalManager consults before confirming any candidate.
func (d *Detector) MarketHealth(nowMs int64, spreadBps, recentVolatilityBps float64) model.MarketHealth {
	cutoff := nowMs - d.cfg.HealthLookbackMs
	recent := d.history.All()

	var criticalIssues []string
	var recentTypes []string
	highestSeverity := model.SeverityInfo
	hasInfraIssue := false

	for _, r := range recent {
		if r.tsMs < cutoff {
			continue
		}
		recentTypes = append(recentTypes, string(r.typ))
		if infrastructureTypes[r.typ] {
			hasInfraIssue = true
			criticalIssues = append(criticalIssues, string(r.typ))
		}
		if severityRank(r.severity) > severityRank(highestSeverity) {
			highestSeverity = r.severity
		}
	}

	healthy := !hasInfraIssue &&
		recentVolatilityBps < d.cfg.HealthyVolatilityThresholdBps &&
		spreadBps < d.cfg.HealthySpreadBps &&
		severityRank(highestSeverity) <= severityRank(model.SeverityInfo)

	recommendation := model.RecommendContinue
	switch {
	case healthy:
		recommendation = model.RecommendContinue
	case hasInfraIssue:
		recommendation = model.RecommendInsufficientData
	case highestSeverity == model.SeverityCritical:
		recommendation = model.RecommendClosePositions
	case highestSeverity == model.SeverityHigh:
		recommendation = model.RecommendPause
	default:
		recommendation = model.RecommendReduceSize
	}

	return model.MarketHealth{
		IsHealthy:          healthy,
		Recommendation:     recommendation,
		CriticalIssues:     criticalIssues,
		RecentAnomalyTypes: recentTypes,
		Metrics: model.HealthMetrics{
			SpreadBps:  spreadBps,
			Volatility: recentVolatilityBps,
		},
	}
}

func severityRank(s model.AnomalySeverity) int {
	switch s {
	case model.SeverityCritical:
		return 3
	case model.SeverityHigh:
		return 2
	case model.SeverityMedium:
		return 1
	default:
		return 0
	}
}
