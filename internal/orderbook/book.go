// Package orderbook implements the authoritative price-keyed order book for
// one symbol: PriceLevel storage, the uninit/recovering/ready/degraded
// state machine, snapshot recovery under Binance's sequence protocol,
// crossed-level purging, and staleness pruning.
//
// Ownership discipline: a single goroutine owns this struct and mutates
// it; everything else reads an immutable Snapshot. The ladder is a
// resizable, price-keyed map with tick-exact fixed-point arithmetic
// rather than a fixed top-N array, since incremental depth updates need
// to grow and shrink the book, not just replace a top-of-book window.
package orderbook

import (
	"errors"
	"sort"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/fixedmath"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
)

// State is the order book's lifecycle state.
type State int

const (
	StateUninit State = iota
	StateRecovering
	StateReady
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "uninit"
	case StateRecovering:
		return "recovering"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// PriceLevel is one tick-aligned price's resting bid/ask quantity.
type PriceLevel struct {
	Price        int64
	BidQty       int64
	AskQty       int64
	LastUpdateMs int64
	UpdateCount  int64
}

// Empty reports whether both sides of the level are zero — such a level
// is removed from the book.
func (l PriceLevel) Empty() bool {
	return l.BidQty == 0 && l.AskQty == 0
}

// BandSum is the result of summing passive volume across a symmetric
// tick band around a center price.
type BandSum struct {
	BidTotal    int64
	AskTotal    int64
	LevelsCount int
}

// HealthReport summarizes the book's operational state.
type HealthReport struct {
	State       State
	ErrorCount  int64
	BookSize    int
	BestBid     int64
	HasBestBid  bool
	BestAsk     int64
	HasBestAsk  bool
	StalenessMs int64
}

var (
	// ErrSequenceGap is returned by ApplyDepth when U != lastApplied.u+1
	// under sequence validation.
	ErrSequenceGap = errors.New("orderbook: sequence gap detected")
	// ErrNotRecovered is returned by ApplyDepth when the book is uninit
	// and sequence validation requires a prior Recover call.
	ErrNotRecovered = errors.New("orderbook: book not recovered")
)

// errorThreshold is the error_count beyond which the book transitions to
// degraded.
const errorThreshold = 20

// Book is the authoritative bid/ask ladder for one symbol.
type Book struct {
	Symbol string
	Tick   int64

	levels map[int64]*PriceLevel

	state      State
	errorCount int64

	lastUpdateID    int64
	lastAppliedU    int64 // SequenceFirst of the most recently applied update
	lastAppliedLast int64 // SequenceLast of the most recently applied update
	lastUpdateMs    int64

	sequenceValidation bool
	maxPriceDistance   int64 // ticks; 0 disables distance pruning
	staleThresholdMs   int64
}

// Option configures a Book at construction.
type Option func(*Book)

// WithSequenceValidation toggles sequence-gap enforcement. Production
// leaves this true (the default); back-test replay over historical depth
// disables it, since a replayed sequence range has no live gaps to detect.
func WithSequenceValidation(enabled bool) Option {
	return func(b *Book) { b.sequenceValidation = enabled }
}

// WithMaxPriceDistance sets the number of ticks beyond which PruneStale
// removes levels far from mid price. 0 disables distance-based pruning.
func WithMaxPriceDistance(ticks int64) Option {
	return func(b *Book) { b.maxPriceDistance = ticks }
}

// WithStaleThresholdMs sets the age beyond which PruneStale removes a
// level regardless of distance.
func WithStaleThresholdMs(ms int64) Option {
	return func(b *Book) { b.staleThresholdMs = ms }
}

// New creates an uninitialized Book for symbol at the given tick size.
func New(symbol string, tick int64, opts ...Option) *Book {
	b := &Book{
		Symbol:             symbol,
		Tick:               tick,
		levels:             make(map[int64]*PriceLevel),
		state:              StateUninit,
		sequenceValidation: true,
		staleThresholdMs:   5 * 60 * 1000,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the book's current lifecycle state.
func (b *Book) State() State { return b.state }

// ErrorCount returns the cumulative invalid-row/gap error count.
func (b *Book) ErrorCount() int64 { return b.errorCount }

// ApplyDepth applies a batch of depth rows under the given sequence range.
// Rows with qty==0 remove that side; a level with both sides zero is
// removed entirely. Invalid rows (negative qty, non-positive price) are
// dropped and counted as errors — processing continues for the rest of
// the batch.
func (b *Book) ApplyDepth(update model.DepthUpdate) error {
	if b.sequenceValidation {
		if b.state == StateUninit {
			return ErrNotRecovered
		}
		if update.SequenceFirst == b.lastAppliedU && update.SequenceLast == b.lastAppliedLast {
			// Idempotent replay of the same update — no-op.
			return nil
		}
		if b.state == StateReady && update.SequenceFirst != b.lastAppliedLast+1 {
			b.state = StateDegraded
			b.errorCount++
			return ErrSequenceGap
		}
	}

	for _, row := range update.Bids {
		b.applyRow(true, row, update.EventTimeMs)
	}
	for _, row := range update.Asks {
		b.applyRow(false, row, update.EventTimeMs)
	}

	b.lastAppliedU = update.SequenceFirst
	b.lastAppliedLast = update.SequenceLast
	b.lastUpdateID = update.SequenceLast
	b.lastUpdateMs = update.EventTimeMs

	if b.state == StateUninit || b.state == StateRecovering {
		b.state = StateReady
	}

	if b.errorCount > errorThreshold && b.state == StateReady {
		b.state = StateDegraded
	}

	return nil
}

func (b *Book) applyRow(isBid bool, row model.DepthRow, tsMs int64) {
	if row.Price <= 0 || row.Qty < 0 {
		b.errorCount++
		return
	}
	price := fixedmath.NormalizeToTick(row.Price, b.Tick)
	lvl, ok := b.levels[price]
	if !ok {
		if row.Qty == 0 {
			return
		}
		lvl = &PriceLevel{Price: price}
		b.levels[price] = lvl
	}
	if isBid {
		lvl.BidQty = row.Qty
	} else {
		lvl.AskQty = row.Qty
	}
	lvl.LastUpdateMs = tsMs
	lvl.UpdateCount++
	if lvl.Empty() {
		delete(b.levels, price)
	}
}

// Snapshot returns an ordered, shallow copy of all price levels, sorted
// ascending by price — suitable for read-only sharing off the core
// goroutine.
func (b *Book) Snapshot() []PriceLevel {
	out := make([]PriceLevel, 0, len(b.levels))
	for _, lvl := range b.levels {
		out = append(out, *lvl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// GetLevel returns the level at price (already tick-normalized by the
// caller), or false if no level exists there.
func (b *Book) GetLevel(price int64) (PriceLevel, bool) {
	lvl, ok := b.levels[price]
	if !ok {
		return PriceLevel{}, false
	}
	return *lvl, true
}

// BestBid returns the highest price with non-zero bid quantity.
func (b *Book) BestBid() (int64, bool) {
	var best int64
	found := false
	for price, lvl := range b.levels {
		if lvl.BidQty > 0 && (!found || price > best) {
			best = price
			found = true
		}
	}
	return best, found
}

// BestAsk returns the lowest price with non-zero ask quantity.
func (b *Book) BestAsk() (int64, bool) {
	var best int64
	found := false
	for price, lvl := range b.levels {
		if lvl.AskQty > 0 && (!found || price < best) {
			best = price
			found = true
		}
	}
	return best, found
}

// Spread returns BestAsk - BestBid, or an invalid Result if either side
// is missing.
func (b *Book) Spread() fixedmath.Result {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return fixedmath.Result{}
	}
	return fixedmath.CalcSpread(bid, ask)
}

// MidPrice returns the tick-normalized banker's-rounded midpoint of best
// bid/ask.
func (b *Book) MidPrice() fixedmath.Result {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return fixedmath.Result{}
	}
	return fixedmath.CalcMidPrice(bid, ask, b.Tick)
}

// SumBand sums passive bid/ask volume across the symmetric band
// [center - n*tick, center + n*tick].
func (b *Book) SumBand(center int64, nTicks int64) BandSum {
	lo := center - nTicks*b.Tick
	hi := center + nTicks*b.Tick
	var sum BandSum
	for price, lvl := range b.levels {
		if price < lo || price > hi {
			continue
		}
		sum.LevelsCount++
		sum.BidTotal += lvl.BidQty
		sum.AskTotal += lvl.AskQty
	}
	return sum
}

// Recover initializes the book from an exchange snapshot, then replays any
// depth updates queued while the snapshot was in flight, discarding stale
// ones and requiring the protocol's U/u contiguity.
func (b *Book) Recover(snapshot model.DepthSnapshot, queued []model.DepthUpdate) error {
	b.levels = make(map[int64]*PriceLevel)
	b.state = StateRecovering
	b.lastUpdateID = snapshot.LastUpdateID

	for _, row := range snapshot.Bids {
		b.applyRow(true, row, 0)
	}
	for _, row := range snapshot.Asks {
		b.applyRow(false, row, 0)
	}

	applied := false
	for _, u := range queued {
		if u.SequenceLast <= b.lastUpdateID {
			continue // discard: fully pre-dates the snapshot
		}
		if !applied {
			if u.SequenceFirst > b.lastUpdateID+1 {
				b.state = StateDegraded
				return ErrSequenceGap
			}
			applied = true
		} else if u.SequenceFirst != b.lastAppliedLast+1 {
			b.state = StateDegraded
			return ErrSequenceGap
		}
		for _, row := range u.Bids {
			b.applyRow(true, row, u.EventTimeMs)
		}
		for _, row := range u.Asks {
			b.applyRow(false, row, u.EventTimeMs)
		}
		b.lastAppliedU = u.SequenceFirst
		b.lastAppliedLast = u.SequenceLast
		b.lastUpdateMs = u.EventTimeMs
	}

	b.state = StateReady
	return nil
}

// PurgeCrossedLevels removes bid levels priced above the current best ask
// and ask levels priced below the current best bid, except that a single
// level equal to both best_bid and best_ask (the midpoint case) is
// preserved verbatim.
func (b *Book) PurgeCrossedLevels() {
	bestBid, okBid := b.BestBid()
	bestAsk, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return
	}
	if bestBid == bestAsk {
		return // midpoint case: nothing to purge
	}
	for price, lvl := range b.levels {
		if lvl.BidQty > 0 && price > bestAsk {
			lvl.BidQty = 0
		}
		if lvl.AskQty > 0 && price < bestBid {
			lvl.AskQty = 0
		}
		if lvl.Empty() {
			delete(b.levels, price)
		}
	}
}

// PruneStale removes levels farther than maxPriceDistance ticks from mid
// price, and levels whose LastUpdateMs is older than staleThresholdMs.
func (b *Book) PruneStale(nowMs int64) {
	mid := b.MidPrice()
	for price, lvl := range b.levels {
		if b.staleThresholdMs > 0 && nowMs-lvl.LastUpdateMs > b.staleThresholdMs {
			delete(b.levels, price)
			continue
		}
		if b.maxPriceDistance > 0 && mid.Valid {
			distance := price - mid.Value
			if distance < 0 {
				distance = -distance
			}
			if distance > b.maxPriceDistance*b.Tick {
				delete(b.levels, price)
			}
		}
	}
}

// Health reports the book's current operational status.
func (b *Book) Health() HealthReport {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	return HealthReport{
		State:       b.state,
		ErrorCount:  b.errorCount,
		BookSize:    len(b.levels),
		BestBid:     bid,
		HasBestBid:  okBid,
		BestAsk:     ask,
		HasBestAsk:  okAsk,
		StalenessMs: b.lastUpdateMs,
	}
}
