package detector

import (
	"github.com/google/uuid"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/rollingwindow"
)

// AccumulationConfig is the immutable configuration for one
// AccumulationDetector instance.
type AccumulationConfig struct {
	TimeWindowMs             int64
	MinAggVolume             int64
	MinPassiveMultiplier     float64
	PriceEfficiencyThreshold float64
}

// Accumulation detects sustained one-sided absorption across a longer
// window than AbsorptionDetector, without its multi-timeframe confluence
// machinery — a thin detector that produces the accumulation/
// distribution signal types the data model and SignalManager direction
// map already expect. It reads the same 20-tick zone inputs
// AbsorptionDetector uses, over a longer horizon instead of scored with
// confluence weights.
type Accumulation struct {
	*Base
	cfg    AccumulationConfig
	window *rollingwindow.Window[absorptionSample]
}

// NewAccumulation constructs an AccumulationDetector.
func NewAccumulation(id string, cfg AccumulationConfig, base *Base) *Accumulation {
	return &Accumulation{
		Base:   base,
		cfg:    cfg,
		window: rollingwindow.New[absorptionSample](4096),
	}
}

// OnEnrichedTrade is the hot-path entry point.
func (d *Accumulation) OnEnrichedTrade(t model.EnrichedTrade) *model.SignalCandidate {
	return d.Guard(func() (*model.SignalCandidate, error) { return d.analyze(t) })
}

// Cleanup purges window state older than the analysis window.
func (d *Accumulation) Cleanup(nowMs int64) {
	d.window.EvictOlderThan(nowMs - d.cfg.TimeWindowMs)
}

func (d *Accumulation) analyze(t model.EnrichedTrade) (*model.SignalCandidate, error) {
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

	var aggressive, passive, sellVol, buyVol int64
	for _, z := range t.ZoneData.Zones20T {
		aggressive += z.AggressiveVol
		passive += z.PassiveBidVol + z.PassiveAskVol
		sellVol += z.AggrSellVol
		buyVol += z.AggrBuyVol
	}

	if aggressive < d.cfg.MinAggVolume {
		return nil, nil
	}
	if float64(passive)/float64(aggressive) < d.cfg.MinPassiveMultiplier {
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

	var signalType model.SignalType
	var side model.Side
	switch {
	case sellVol > buyVol:
		signalType = model.SignalAccumulation
		side = model.SideBuy
	case buyVol > sellVol:
		signalType = model.SignalDistribution
		side = model.SideSell
	default:
		return nil, nil
	}

	confidence := float64(passive) / float64(passive+aggressive)

	return &model.SignalCandidate{
		ID:         uuid.NewString(),
		DetectorID: d.ID,
		Type:       signalType,
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
