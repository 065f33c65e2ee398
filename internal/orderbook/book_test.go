package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
)

const tick = 100_000 // 0.001 at PriceScale

func readyBook(t *testing.T) *Book {
	t.Helper()
	b := New("BTCUSDT", tick)
	err := b.Recover(model.DepthSnapshot{
		Symbol:       "BTCUSDT",
		LastUpdateID: 100,
		Bids: []model.DepthRow{
			{Price: 10_000 * tick, Qty: 5 * tick},
			{Price: 9_990 * tick, Qty: 3 * tick},
		},
		Asks: []model.DepthRow{
			{Price: 10_010 * tick, Qty: 4 * tick},
			{Price: 10_020 * tick, Qty: 2 * tick},
		},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, StateReady, b.State())
	return b
}

func TestApplyDepthRequiresRecoveryFirst(t *testing.T) {
	b := New("BTCUSDT", tick)
	err := b.ApplyDepth(model.DepthUpdate{SequenceFirst: 1, SequenceLast: 1})
	assert.ErrorIs(t, err, ErrNotRecovered)
}

func TestSequenceGapFlipsDegraded(t *testing.T) {
	b := readyBook(t)
	err := b.ApplyDepth(model.DepthUpdate{
		SequenceFirst: 500, // not lastAppliedLast+1
		SequenceLast:  501,
		EventTimeMs:   1,
		Bids:          []model.DepthRow{{Price: 10_000 * tick, Qty: 1 * tick}},
	})
	assert.ErrorIs(t, err, ErrSequenceGap)
	assert.Equal(t, StateDegraded, b.State())
}

func TestIdempotentReplayIsNoop(t *testing.T) {
	b := readyBook(t)
	update := model.DepthUpdate{
		SequenceFirst: 101,
		SequenceLast:  102,
		EventTimeMs:   10,
		Bids:          []model.DepthRow{{Price: 10_000 * tick, Qty: 7 * tick}},
	}
	require.NoError(t, b.ApplyDepth(update))
	lvl, _ := b.GetLevel(10_000 * tick)
	require.Equal(t, 7*tick, lvl.BidQty)
	firstCount := lvl.UpdateCount

	require.NoError(t, b.ApplyDepth(update))
	lvl2, _ := b.GetLevel(10_000 * tick)
	assert.Equal(t, firstCount, lvl2.UpdateCount, "replay of an already-applied sequence range must not mutate state")
}

// Quantities never go negative — invalid rows are dropped and counted
// as errors instead of corrupting the level.
func TestInvalidRowsAreDroppedAndCounted(t *testing.T) {
	b := readyBook(t)
	before := b.ErrorCount()
	err := b.ApplyDepth(model.DepthUpdate{
		SequenceFirst: 101,
		SequenceLast:  101,
		EventTimeMs:   5,
		Bids:          []model.DepthRow{{Price: -1, Qty: 5 * tick}},
	})
	require.NoError(t, err)
	assert.Greater(t, b.ErrorCount(), before)
	for _, lvl := range b.Snapshot() {
		assert.GreaterOrEqual(t, lvl.BidQty, int64(0))
		assert.GreaterOrEqual(t, lvl.AskQty, int64(0))
	}
}

// When best_bid == best_ask the single crossing level is preserved
// rather than purged from both sides into nothing.
func TestPurgeCrossedLevelsPreservesMidpoint(t *testing.T) {
	b := New("BTCUSDT", tick)
	require.NoError(t, b.Recover(model.DepthSnapshot{
		Bids: []model.DepthRow{{Price: 10_000 * tick, Qty: 5 * tick}},
		Asks: []model.DepthRow{{Price: 10_000 * tick, Qty: 5 * tick}},
	}, nil))

	b.PurgeCrossedLevels()

	lvl, ok := b.GetLevel(10_000 * tick)
	require.True(t, ok, "midpoint level must survive the purge")
	assert.Equal(t, int64(5*tick), lvl.BidQty)
	assert.Equal(t, int64(5*tick), lvl.AskQty)
}

func TestPurgeCrossedLevelsRemovesActualCrossing(t *testing.T) {
	b := New("BTCUSDT", tick)
	require.NoError(t, b.Recover(model.DepthSnapshot{
		Bids: []model.DepthRow{
			{Price: 10_000 * tick, Qty: 5 * tick},
			{Price: 10_015 * tick, Qty: 1 * tick}, // stale: above best ask
		},
		Asks: []model.DepthRow{
			{Price: 10_010 * tick, Qty: 4 * tick},
		},
	}, nil))

	b.PurgeCrossedLevels()

	_, ok := b.GetLevel(10_015 * tick)
	assert.False(t, ok, "bid above best ask must be purged")
	lvl, ok := b.GetLevel(10_000 * tick)
	require.True(t, ok)
	assert.Equal(t, int64(5*tick), lvl.BidQty)
}

func TestBestBidAskAndSpread(t *testing.T) {
	b := readyBook(t)
	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(10_000*tick), bid)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int64(10_010*tick), ask)

	spread := b.Spread()
	require.True(t, spread.Valid)
	assert.Equal(t, int64(10*tick), spread.Value)
}

func TestMidPriceBankersRounding(t *testing.T) {
	b := readyBook(t)
	mid := b.MidPrice()
	require.True(t, mid.Valid)
	assert.Equal(t, int64(10_005*tick), mid.Value)
}

func TestSumBand(t *testing.T) {
	b := readyBook(t)
	sum := b.SumBand(10_005*tick, 10)
	assert.Equal(t, 4, sum.LevelsCount)
	assert.Equal(t, int64(8*tick), sum.BidTotal)
	assert.Equal(t, int64(6*tick), sum.AskTotal)
}

func TestPruneStaleByAge(t *testing.T) {
	b := New("BTCUSDT", tick, WithStaleThresholdMs(1000))
	require.NoError(t, b.Recover(model.DepthSnapshot{
		Bids: []model.DepthRow{{Price: 10_000 * tick, Qty: 1 * tick}},
	}, nil))

	b.PruneStale(2000)

	_, ok := b.GetLevel(10_000 * tick)
	assert.False(t, ok, "snapshot rows applied at ts=0 are older than the stale threshold at now=2000")
}

func TestRecoverDiscardsStaleQueuedUpdates(t *testing.T) {
	b := New("BTCUSDT", tick)
	queued := []model.DepthUpdate{
		{SequenceFirst: 50, SequenceLast: 90, EventTimeMs: 1}, // fully pre-dates snapshot at 100
		{SequenceFirst: 101, SequenceLast: 101, EventTimeMs: 2,
			Bids: []model.DepthRow{{Price: 10_000 * tick, Qty: 9 * tick}}},
	}
	require.NoError(t, b.Recover(model.DepthSnapshot{
		LastUpdateID: 100,
		Bids:         []model.DepthRow{{Price: 10_000 * tick, Qty: 5 * tick}},
	}, queued))

	lvl, ok := b.GetLevel(10_000 * tick)
	require.True(t, ok)
	assert.Equal(t, int64(9*tick), lvl.BidQty)
}

func TestHealthReportsState(t *testing.T) {
	b := readyBook(t)
	h := b.Health()
	assert.Equal(t, StateReady, h.State)
	assert.True(t, h.HasBestBid)
	assert.True(t, h.HasBestAsk)
}
