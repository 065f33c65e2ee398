package detector

import (
	"github.com/google/uuid"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
)

// SpoofingConfig is the immutable configuration for one
// SpoofingDetector instance.
type SpoofingConfig struct {
	TickSize                int64
	WallTicks               int64
	MinWallSize             int64
	RapidCancellationMs     int64
	MaxCancellationRatio    float64
	CancellationWindowMs    int64
	MinExecutedRatioForFill float64 // fraction of resting qty that, if matched by trades, reclassifies a drop as a fill
}

type wallRecord struct {
	side        model.Side
	qty         int64
	appearedMs  int64
	executedQty int64 // cumulative trade volume matched against this wall since it appeared
}

// Spoofing detects a passive wall that appears, dissuades, and is
// canceled without executing. Unlike the trade-driven detectors, its
// input is the stream of passive-volume changes near best bid/ask — the
// core loop calls OnLevelUpdate after every depth application, not
// OnEnrichedTrade.
type Spoofing struct {
	*Base
	cfg SpoofingConfig

	walls             map[int64]*wallRecord // keyed by price
	spoofedAtMs       map[int64]int64       // price -> ts most recently flagged spoofed
	cancelCountBySide map[model.Side]int64
	totalCountBySide  map[model.Side]int64
}

// NewSpoofing constructs a SpoofingDetector.
func NewSpoofing(id string, cfg SpoofingConfig, base *Base) *Spoofing {
	return &Spoofing{
		Base:              base,
		cfg:               cfg,
		walls:             make(map[int64]*wallRecord),
		spoofedAtMs:       make(map[int64]int64),
		cancelCountBySide: make(map[model.Side]int64),
		totalCountBySide:  make(map[model.Side]int64),
	}
}

// OnLevelUpdate processes one (side, price, qty) passive-volume change
// observed at tsMs, given the current best price on that side.
func (d *Spoofing) OnLevelUpdate(side model.Side, price, qty, tsMs, bestPrice int64) *model.SignalCandidate {
	return d.Guard(func() (*model.SignalCandidate, error) { return d.analyze(side, price, qty, tsMs, bestPrice) })
}

// OnTradeExecution records aggressive trade volume matched against the
// resting wall at price, if one is currently tracked there. A bid wall
// (SideBuy) is depleted by aggressive sell trades and an ask wall
// (SideSell) by aggressive buy trades, so only executions on the
// opposite side of the tracked wall count toward it.
func (d *Spoofing) OnTradeExecution(price, qty int64, aggressiveSide model.Side) {
	wall, ok := d.walls[price]
	if !ok {
		return
	}
	wallSide := model.SideSell
	if aggressiveSide == model.SideSell {
		wallSide = model.SideBuy
	}
	if wall.side != wallSide {
		return
	}
	wall.executedQty += qty
}

func (d *Spoofing) analyze(side model.Side, price, qty, tsMs, bestPrice int64) (*model.SignalCandidate, error) {
	distance := price - bestPrice
	if distance < 0 {
		distance = -distance
	}
	withinZone := distance <= d.cfg.WallTicks*d.cfg.TickSize

	existing, hasWall := d.walls[price]

	if !hasWall {
		if withinZone && qty >= d.cfg.MinWallSize {
			d.walls[price] = &wallRecord{side: side, qty: qty, appearedMs: tsMs}
		}
		return nil, nil
	}

	if qty >= d.cfg.MinWallSize {
		existing.qty = qty // wall persists, update size
		return nil, nil
	}

	// Wall disappeared. If enough of its resting size was matched by
	// aggressive trade executions at this price, the liquidity was filled,
	// not pulled — that is the absorption pattern AbsorptionDetector looks
	// for, not spoofing, so it must never count toward the cancel ratio.
	filled := existing.qty > 0 && existing.executedQty > 0 &&
		float64(existing.executedQty)/float64(existing.qty) >= d.cfg.MinExecutedRatioForFill
	delete(d.walls, price)
	if filled {
		return nil, nil
	}

	// Wall disappeared without enough matching executions: canceled.
	elapsed := tsMs - existing.appearedMs
	d.totalCountBySide[existing.side]++

	if elapsed > d.cfg.RapidCancellationMs {
		return nil, nil // too slow to count as a spoof
	}

	d.spoofedAtMs[price] = tsMs
	d.cancelCountBySide[existing.side]++

	total := d.totalCountBySide[existing.side]
	ratio := float64(d.cancelCountBySide[existing.side]) / float64(total)
	if ratio <= d.cfg.MaxCancellationRatio {
		return nil, nil
	}

	return &model.SignalCandidate{
		ID:         uuid.NewString(),
		DetectorID: d.ID,
		Type:       model.SignalSpoofing,
		Side:       existing.side,
		Confidence: ratio,
		TsMs:       tsMs,
		Data: model.SignalCandidateData{
			Price:      price,
			Aggressive: 0,
			Passive:    existing.qty,
		},
	}, nil
}

// IsSpoofed implements SpoofChecker for AbsorptionDetector: a price is
// considered spoofed if a wall there is currently flagged as canceled.
// Flags are not aged here; Cleanup drops those older than
// CancellationWindowMs.
func (d *Spoofing) IsSpoofed(price int64) bool {
	_, ok := d.spoofedAtMs[price]
	return ok
}

// Cleanup evicts spoof flags older than the cancellation window.
func (d *Spoofing) Cleanup(nowMs int64) {
	cutoff := nowMs - d.cfg.CancellationWindowMs
	for price, ts := range d.spoofedAtMs {
		if ts < cutoff {
			delete(d.spoofedAtMs, price)
		}
	}
}
