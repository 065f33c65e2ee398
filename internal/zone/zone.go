// Package zone implements ZoneAggregator: per-horizon aggregated volumes
// and trade counts, keyed by a flat tick-normalized bucket price, with no
// pointers between zones — eviction is by time alone.
package zone

import (
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/fixedmath"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
)

// Config describes one horizon's bucket width and retention window.
type Config struct {
	TickWidth    int64 // k*tick for this horizon
	TimeWindowMs int64
}

// Aggregator owns the zones for a single horizon (one of 5T/10T/20T).
// It is not safe for concurrent use — the preprocessor goroutine owns it
// exclusively.
type Aggregator struct {
	cfg   Config
	zones map[int64]*model.ZoneSnapshot
}

// New creates an Aggregator for one horizon.
func New(cfg Config) *Aggregator {
	return &Aggregator{
		cfg:   cfg,
		zones: make(map[int64]*model.ZoneSnapshot),
	}
}

// BucketFor returns the tick-normalized bucket key a price belongs to.
func (a *Aggregator) BucketFor(price, tick int64) int64 {
	return fixedmath.NormalizeToTick(price, a.cfg.TickWidth)
}

// Update folds one trade's contribution into the bucket containing
// price: aggressive volume always added; passive volume added once per
// trade (never double-counted across calls for the same trade);
// trade_count incremented; volume_weighted_price updated via a running
// sum.
func (a *Aggregator) Update(bucket int64, tickSize int64, side model.Side, aggVol, passiveBidAtPrice, passiveAskAtPrice, price, tsMs int64) {
	z, ok := a.zones[bucket]
	if !ok {
		z = &model.ZoneSnapshot{
			ZoneID:      bucket,
			PriceLevel:  bucket,
			TickSize:    tickSize,
			BoundaryMin: bucket,
			BoundaryMax: bucket,
		}
		a.zones[bucket] = z
	}

	z.AggressiveVol += aggVol
	if side == model.SideBuy {
		z.AggrBuyVol += aggVol
	} else {
		z.AggrSellVol += aggVol
	}
	z.PassiveBidVol += passiveBidAtPrice
	z.PassiveAskVol += passiveAskAtPrice
	z.PassiveVol += passiveBidAtPrice + passiveAskAtPrice

	if price < z.BoundaryMin {
		z.BoundaryMin = price
	}
	if price > z.BoundaryMax {
		z.BoundaryMax = price
	}

	// Running VWP: weighted by aggressive volume, the only per-trade
	// volume this update contributes.
	if aggVol > 0 && z.AggressiveVol > 0 {
		priorVol := z.AggressiveVol - aggVol
		prior := fixedmath.SafeMul(z.VolumeWeightedPrice, priorVol, z.AggressiveVol)
		cur := fixedmath.SafeMul(price, aggVol, z.AggressiveVol)
		if prior.Valid && cur.Valid {
			z.VolumeWeightedPrice = prior.Value + cur.Value
		}
	}

	z.TradeCount++
	z.LastUpdateMs = tsMs
}

// Snapshot returns a copy of the zone at bucket, or false if none exists.
func (a *Aggregator) Snapshot(bucket int64) (model.ZoneSnapshot, bool) {
	z, ok := a.zones[bucket]
	if !ok {
		return model.ZoneSnapshot{}, false
	}
	return *z, true
}

// Near returns snapshots of bucket and its immediate neighbors on either
// side, for attachment to EnrichedTrade.
func (a *Aggregator) Near(bucket int64) []model.ZoneSnapshot {
	candidates := []int64{bucket - a.cfg.TickWidth, bucket, bucket + a.cfg.TickWidth}
	out := make([]model.ZoneSnapshot, 0, len(candidates))
	for _, key := range candidates {
		if z, ok := a.zones[key]; ok {
			out = append(out, *z)
		}
	}
	return out
}

// EvictOlderThan removes zones whose LastUpdateMs falls before cutoffMs.
func (a *Aggregator) EvictOlderThan(cutoffMs int64) {
	for key, z := range a.zones {
		if z.LastUpdateMs < cutoffMs {
			delete(a.zones, key)
		}
	}
}

// Len reports the number of live zones, for metrics/diagnostics.
func (a *Aggregator) Len() int { return len(a.zones) }
