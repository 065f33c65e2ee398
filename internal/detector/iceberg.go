package detector

import (
	"github.com/google/uuid"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/fixedmath"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
)

type icebergKind int

const (
	kindPassive icebergKind = iota
	kindAggressiveLTC
	kindAggressiveUSDT
)

// IcebergConfig is the immutable configuration for one IcebergDetector.
type IcebergConfig struct {
	TimeWindowMs      int64
	MaxOrderGapMs     int64
	MinOrderCount     int
	MinTotalSize      int64
	MaxActivePatterns int
}

type icebergPatternKey struct {
	kind       icebergKind
	side       model.Side
	exactValue int64
}

type icebergPattern struct {
	key         icebergPatternKey
	requiredQty int64 // only meaningful for kindPassive
	firstTsMs   int64
	lastTsMs    int64
	count       int
	totalSize   int64
	detected    bool
}

func newIcebergPattern(key icebergPatternKey, t model.EnrichedTrade) *icebergPattern {
	return &icebergPattern{
		key:         key,
		requiredQty: t.Qty,
		firstTsMs:   t.TsMs,
		lastTsMs:    t.TsMs,
		count:       1,
		totalSize:   t.Qty,
	}
}

func (p *icebergPattern) reset(t model.EnrichedTrade) {
	p.requiredQty = t.Qty
	p.firstTsMs = t.TsMs
	p.lastTsMs = t.TsMs
	p.count = 1
	p.totalSize = t.Qty
	p.detected = false
}

func (p *icebergPattern) append(t model.EnrichedTrade) {
	p.lastTsMs = t.TsMs
	p.count++
	p.totalSize += t.Qty
}

// Iceberg detects a single resting/aggressing order sliced into many
// identically-sized child trades. All three kinds track independently
// on every trade; when more
// than one kind completes on the same trade, only the highest-priority
// one (passive → aggressive_ltc → aggressive_usdt) emits. Patterns are
// keyed by (kind, side, exact_value) with no pointers between patterns —
// the same flat-map discipline as ZoneAggregator — and capped at
// MaxActivePatterns via LRU eviction.
type Iceberg struct {
	*Base
	cfg      IcebergConfig
	patterns map[icebergPatternKey]*icebergPattern
	lru      []icebergPatternKey
}

// NewIceberg constructs an IcebergDetector.
func NewIceberg(id string, cfg IcebergConfig, base *Base) *Iceberg {
	return &Iceberg{
		Base:     base,
		cfg:      cfg,
		patterns: make(map[icebergPatternKey]*icebergPattern),
	}
}

// OnEnrichedTrade is the hot-path entry point.
func (d *Iceberg) OnEnrichedTrade(t model.EnrichedTrade) *model.SignalCandidate {
	return d.Guard(func() (*model.SignalCandidate, error) { return d.analyze(t) })
}

// Cleanup purges patterns whose last trade fell outside the analysis
// window, run on a periodic sweep.
func (d *Iceberg) Cleanup(nowMs int64) {
	cutoff := nowMs - d.cfg.TimeWindowMs
	for key, p := range d.patterns {
		if p.lastTsMs < cutoff {
			delete(d.patterns, key)
			d.removeFromLRU(key)
		}
	}
}

func (d *Iceberg) analyze(t model.EnrichedTrade) (*model.SignalCandidate, error) {
	side := t.AggressiveSide()

	passiveKey := icebergPatternKey{kind: kindPassive, side: side, exactValue: t.Price}
	passiveCand := d.process(passiveKey, t, true)

	ltcKey := icebergPatternKey{kind: kindAggressiveLTC, side: side, exactValue: t.Qty}
	ltcCand := d.process(ltcKey, t, false)

	var usdtCand *model.SignalCandidate
	if notional := fixedmath.SafeMul(t.Price, t.Qty, fixedmath.QuantityScale); notional.Valid {
		rounded := fixedmath.NormalizeToTick(notional.Value, fixedmath.PriceScale/100)
		usdtKey := icebergPatternKey{kind: kindAggressiveUSDT, side: side, exactValue: rounded}
		usdtCand = d.process(usdtKey, t, false)
	}

	switch {
	case passiveCand != nil:
		return passiveCand, nil
	case ltcCand != nil:
		return ltcCand, nil
	default:
		return usdtCand, nil
	}
}

// process implements the shared "new pattern / gap reset / invariant
// check / append / detect" sequence for one (kind, side, exact_value)
// bucket. requireExactQty enforces the passive kind's zero-tolerance
// size invariant: a trade whose size differs from the pattern's first
// trade breaks the sequence exactly like an expired gap.
func (d *Iceberg) process(key icebergPatternKey, t model.EnrichedTrade, requireExactQty bool) *model.SignalCandidate {
	pat, ok := d.patterns[key]
	if !ok {
		d.patterns[key] = newIcebergPattern(key, t)
		d.touchLRU(key)
		d.evictIfOverCapacity()
		return nil
	}

	gap := t.TsMs - pat.lastTsMs
	sizeBreak := requireExactQty && t.Qty != pat.requiredQty
	if gap > d.cfg.MaxOrderGapMs || sizeBreak {
		pat.reset(t)
		d.touchLRU(key)
		return nil
	}

	pat.append(t)
	d.touchLRU(key)

	if !pat.detected && pat.count >= d.cfg.MinOrderCount && pat.totalSize >= d.cfg.MinTotalSize {
		pat.detected = true
		return &model.SignalCandidate{
			ID:         uuid.NewString(),
			DetectorID: d.ID,
			Type:       model.SignalIceberg,
			Side:       key.side,
			Confidence: 0.8,
			TsMs:       t.TsMs,
			Data: model.SignalCandidateData{
				Price:      t.Price,
				Aggressive: pat.totalSize,
				Meta:       map[string]string{"kind": icebergKindName(key.kind)},
			},
		}
	}
	return nil
}

func icebergKindName(k icebergKind) string {
	switch k {
	case kindPassive:
		return "passive"
	case kindAggressiveLTC:
		return "aggressive_ltc"
	case kindAggressiveUSDT:
		return "aggressive_usdt"
	default:
		return "unknown"
	}
}

func (d *Iceberg) touchLRU(key icebergPatternKey) {
	d.removeFromLRU(key)
	d.lru = append(d.lru, key)
}

func (d *Iceberg) removeFromLRU(key icebergPatternKey) {
	for i, k := range d.lru {
		if k == key {
			d.lru = append(d.lru[:i], d.lru[i+1:]...)
			return
		}
	}
}

func (d *Iceberg) evictIfOverCapacity() {
	if d.cfg.MaxActivePatterns <= 0 {
		return
	}
	for len(d.patterns) > d.cfg.MaxActivePatterns && len(d.lru) > 0 {
		oldest := d.lru[0]
		d.lru = d.lru[1:]
		delete(d.patterns, oldest)
	}
}
