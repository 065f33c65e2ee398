// Package preprocessor implements OrderFlowPreprocessor: per-trade
// enrichment with passive-liquidity context and multi-horizon zone
// state, processed strictly in arrival order relative to depth updates.
// It reads the book (never mutates it) and exclusively owns the three
// horizon ZoneAggregators.
package preprocessor

import (
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/fixedmath"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/orderbook"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/zone"
)

// BookReader is the read-only capability the preprocessor holds on the
// order book.
type BookReader interface {
	GetLevel(price int64) (orderbook.PriceLevel, bool)
	SumBand(center, nTicks int64) orderbook.BandSum
	BestBid() (int64, bool)
	BestAsk() (int64, bool)
}

// Config holds the preprocessor's tick/band/horizon parameters.
type Config struct {
	TickSize     int64
	BandTicks    int64
	Horizons     [3]int64 // {5, 10, 20}
	TimeWindowMs int64
}

// Preprocessor enriches raw trades with book context and zone state.
type Preprocessor struct {
	cfg   Config
	book  BookReader
	zones [3]*zone.Aggregator // indices align with cfg.Horizons
}

// New creates a Preprocessor bound to a read-only book view.
func New(cfg Config, book BookReader) *Preprocessor {
	p := &Preprocessor{cfg: cfg, book: book}
	for i, h := range cfg.Horizons {
		p.zones[i] = zone.New(zone.Config{
			TickWidth:    h * cfg.TickSize,
			TimeWindowMs: cfg.TimeWindowMs,
		})
	}
	return p
}

// OnTrade enriches a single aggressive trade with passive-liquidity
// context and multi-horizon zone state. Must be called in strict arrival
// order relative to depth application on
// the same book; the preprocessor does not itself serialize that order —
// the core loop that owns both the book and this preprocessor does.
func (p *Preprocessor) OnTrade(t model.AggTrade) model.EnrichedTrade {
	bestBid, _ := p.book.BestBid()
	bestAsk, _ := p.book.BestAsk()

	var passiveBidAtPrice, passiveAskAtPrice int64
	if lvl, ok := p.book.GetLevel(fixedmath.NormalizeToTick(t.Price, p.cfg.TickSize)); ok {
		passiveBidAtPrice = lvl.BidQty
		passiveAskAtPrice = lvl.AskQty
	}

	band := p.book.SumBand(t.Price, p.cfg.BandTicks)
	side := t.AggressiveSide()

	zones := make([][]model.ZoneSnapshot, len(p.cfg.Horizons))
	for i, agg := range p.zones {
		bucket := agg.BucketFor(t.Price, p.cfg.TickSize)
		agg.Update(bucket, p.cfg.TickSize, side, t.Qty, passiveBidAtPrice, passiveAskAtPrice, t.Price, t.TsMs)
		agg.EvictOlderThan(t.TsMs - p.cfg.TimeWindowMs)
		zones[i] = agg.Near(bucket)
	}

	zoneData := model.StandardZoneData{
		Zones5T:  zones[0],
		Zones10T: zones[1],
		Zones20T: zones[2],
		Config: model.ZoneConfig{
			BaseTicks:    p.cfg.Horizons,
			TickValue:    p.cfg.TickSize,
			TimeWindowMs: p.cfg.TimeWindowMs,
		},
	}

	return model.EnrichedTrade{
		AggTrade:             t,
		BestBid:              bestBid,
		BestAsk:              bestAsk,
		PassiveBidVolAtPrice: passiveBidAtPrice,
		PassiveAskVolAtPrice: passiveAskAtPrice,
		ZonePassiveBidVol:    band.BidTotal,
		ZonePassiveAskVol:    band.AskTotal,
		ZoneData:             zoneData,
	}
}
