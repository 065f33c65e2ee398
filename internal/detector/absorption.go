package detector

import (
	"github.com/google/uuid"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/rollingwindow"
)

// SpoofChecker lets AbsorptionDetector query SpoofingDetector before
// confirming a passive wall is genuine rather than a spoofed one.
type SpoofChecker interface {
	IsSpoofed(price int64) bool
}

// AbsorptionConfig is the fully-validated, immutable configuration for
// one AbsorptionDetector instance.
type AbsorptionConfig struct {
	TickSize                     int64
	TimeWindowMs                 int64
	MinVolumeForRatio            int64
	MinAggVolume                 int64
	MinPassiveMultiplier         float64
	MaxAbsorptionRatio           float64
	PriceEfficiencyThreshold     float64
	SpreadImpactThresholdTicks   int64
	InstitutionalVolumeThreshold int64
	InstitutionalVolumeBoost     float64
	ConfluenceWeight             float64
	AlignmentWeight              float64
	CrossTimeframeBoost          float64
}

type absorptionSample struct {
	tsMs   int64
	price  int64
	aggVol int64
}

func (s absorptionSample) TimestampMs() int64 { return s.tsMs }

// Absorption detects a price level absorbing aggressive flow without
// moving: a baseline ratio/efficiency gate, plus an enhanced multi-
// timeframe confluence layer that only ever boosts the baseline
// confidence and never emits on its own.
type Absorption struct {
	*Base
	cfg    AbsorptionConfig
	spoof  SpoofChecker
	window *rollingwindow.Window[absorptionSample]
}

// NewAbsorption constructs an AbsorptionDetector.
func NewAbsorption(id string, cfg AbsorptionConfig, base *Base, spoof SpoofChecker) *Absorption {
	return &Absorption{
		Base:   base,
		cfg:    cfg,
		spoof:  spoof,
		window: rollingwindow.New[absorptionSample](4096),
	}
}

// OnEnrichedTrade is the hot-path entry point.
func (d *Absorption) OnEnrichedTrade(t model.EnrichedTrade) *model.SignalCandidate {
	return d.Guard(func() (*model.SignalCandidate, error) { return d.analyze(t) })
}

// Cleanup purges window state older than the analysis window.
func (d *Absorption) Cleanup(nowMs int64) {
	d.window.EvictOlderThan(nowMs - d.cfg.TimeWindowMs)
}

func (d *Absorption) analyze(t model.EnrichedTrade) (*model.SignalCandidate, error) {
	d.window.Add(absorptionSample{tsMs: t.TsMs, price: t.Price, aggVol: t.Qty})
	d.window.EvictOlderThan(t.TsMs - d.cfg.TimeWindowMs)
	samples := d.window.All()
	if len(samples) == 0 {
		return nil, nil
	}

	minPrice, maxPrice := samples[0].price, samples[0].price
	var windowAgg int64
	for _, s := range samples {
		windowAgg += s.aggVol
		if s.price < minPrice {
			minPrice = s.price
		}
		if s.price > maxPrice {
			maxPrice = s.price
		}
	}

	zonesPerHorizon := [3][]model.ZoneSnapshot{t.ZoneData.Zones5T, t.ZoneData.Zones10T, t.ZoneData.Zones20T}

	var aggressive, passive, sellVol, buyVol int64
	for _, z := range zonesPerHorizon[0] {
		aggressive += z.AggressiveVol
		passive += z.PassiveBidVol + z.PassiveAskVol
		sellVol += z.AggrSellVol
		buyVol += z.AggrBuyVol
	}

	if aggressive < d.cfg.MinAggVolume {
		return nil, nil
	}

	denom := aggressive
	if denom < d.cfg.MinVolumeForRatio {
		denom = d.cfg.MinVolumeForRatio
	}
	passiveRatio := float64(passive) / float64(denom)
	if passiveRatio < d.cfg.MinPassiveMultiplier {
		return nil, nil
	}

	var absorptionRatio float64
	if total := aggressive + passive; total > 0 {
		absorptionRatio = float64(aggressive) / float64(total)
	}
	if absorptionRatio > d.cfg.MaxAbsorptionRatio {
		return nil, nil
	}

	priceDelta := maxPrice - minPrice
	if priceDelta < 0 {
		priceDelta = -priceDelta
	}
	priceEfficiency := float64(priceDelta) / float64(windowAgg)
	if priceEfficiency >= d.cfg.PriceEfficiencyThreshold {
		return nil, nil
	}

	spreadTicks := (t.BestAsk - t.BestBid) / d.cfg.TickSize
	if spreadTicks > d.cfg.SpreadImpactThresholdTicks {
		return nil, nil
	}

	if d.spoof != nil && d.spoof.IsSpoofed(t.Price) {
		return nil, nil
	}

	side := model.SideSell
	if sellVol > buyVol {
		side = model.SideBuy
	}

	confidence := 0.5 + (passiveRatio-d.cfg.MinPassiveMultiplier)*0.05
	confidence += d.enhancedBoost(zonesPerHorizon)
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	return &model.SignalCandidate{
		ID:         uuid.NewString(),
		DetectorID: d.ID,
		Type:       model.SignalAbsorption,
		Side:       side,
		Confidence: confidence,
		TsMs:       t.TsMs,
		Data: model.SignalCandidateData{
			Price:      t.Price,
			Aggressive: aggressive,
			Passive:    passive,
		},
	}, nil
}

// enhancedBoost computes the multi-timeframe confluence/alignment/
// institutional-volume boost. It is purely additive to the baseline
// confidence and never gates emission on its own.
func (d *Absorption) enhancedBoost(zonesPerHorizon [3][]model.ZoneSnapshot) float64 {
	weights := [3]float64{0.40, 0.35, 0.25}
	var confluence float64
	strengths := make([]float64, 0, 3)
	reportingHorizons := 0
	absorbingHorizons := 0
	var instBoost float64

	for i, zs := range zonesPerHorizon {
		if len(zs) == 0 {
			continue
		}
		var a, p int64
		for _, z := range zs {
			a += z.AggressiveVol
			p += z.PassiveBidVol + z.PassiveAskVol
			if z.AggressiveVol+z.PassiveBidVol+z.PassiveAskVol >= d.cfg.InstitutionalVolumeThreshold {
				instBoost = d.cfg.InstitutionalVolumeBoost
			}
		}
		if a+p == 0 {
			continue
		}
		strength := float64(p) / float64(a+p)
		strengths = append(strengths, strength)
		confluence += weights[i] * strength
		reportingHorizons++
		if strength > 0.5 {
			absorbingHorizons++
		}
	}

	if reportingHorizons == 3 {
		confluence += 0.20 // diversity bonus
	}

	var mean float64
	for _, s := range strengths {
		mean += s
	}
	if len(strengths) > 0 {
		mean /= float64(len(strengths))
	}
	var variance float64
	for _, s := range strengths {
		d := s - mean
		variance += d * d
	}
	if len(strengths) > 0 {
		variance /= float64(len(strengths))
	}
	consistency := 1 - variance
	if consistency < 0 {
		consistency = 0
	}

	boost := d.cfg.ConfluenceWeight*confluence + d.cfg.AlignmentWeight*consistency + instBoost
	if absorbingHorizons >= 2 {
		boost += d.cfg.CrossTimeframeBoost
	}
	return boost
}
