package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
)

const tick = 100_000

func TestUpdateCreatesAndAccumulatesZone(t *testing.T) {
	a := New(Config{TickWidth: 5 * tick, TimeWindowMs: 60_000})
	bucket := a.BucketFor(10_000*tick, tick)

	a.Update(bucket, tick, model.SideBuy, 100, 20, 10, 10_000*tick, 1000)
	a.Update(bucket, tick, model.SideSell, 50, 5, 5, 10_002*tick, 1500)

	z, ok := a.Snapshot(bucket)
	require.True(t, ok)
	assert.Equal(t, int64(150), z.AggressiveVol)
	assert.Equal(t, int64(100), z.AggrBuyVol)
	assert.Equal(t, int64(50), z.AggrSellVol)
	assert.Equal(t, int64(2), z.TradeCount)
}

// Zone additivity: aggr_buy_vol + aggr_sell_vol == aggressive_vol;
// passive_bid_vol + passive_ask_vol == passive_vol — both pairs checked
// against their combined fields.
func TestZoneAdditivityInvariant(t *testing.T) {
	a := New(Config{TickWidth: 5 * tick, TimeWindowMs: 60_000})
	bucket := a.BucketFor(10_000*tick, tick)

	a.Update(bucket, tick, model.SideBuy, 100, 20, 10, 10_000*tick, 1000)
	a.Update(bucket, tick, model.SideSell, 30, 5, 15, 10_001*tick, 1200)

	z, _ := a.Snapshot(bucket)
	assert.Equal(t, z.AggressiveVol, z.AggrBuyVol+z.AggrSellVol)
	assert.Equal(t, z.PassiveVol, z.PassiveBidVol+z.PassiveAskVol)
}

func TestEvictOlderThan(t *testing.T) {
	a := New(Config{TickWidth: 5 * tick, TimeWindowMs: 60_000})
	b1 := a.BucketFor(10_000*tick, tick)
	b2 := a.BucketFor(10_500*tick, tick)
	a.Update(b1, tick, model.SideBuy, 10, 0, 0, 10_000*tick, 1000)
	a.Update(b2, tick, model.SideBuy, 10, 0, 0, 10_500*tick, 5000)

	a.EvictOlderThan(4000)

	assert.Equal(t, 1, a.Len())
	_, stillThere := a.Snapshot(b2)
	assert.True(t, stillThere)
}

func TestNearReturnsNeighborBuckets(t *testing.T) {
	a := New(Config{TickWidth: 5 * tick, TimeWindowMs: 60_000})
	center := a.BucketFor(10_000*tick, tick)
	left := center - 5*tick
	a.Update(center, tick, model.SideBuy, 10, 0, 0, 10_000*tick, 1000)
	a.Update(left, tick, model.SideBuy, 5, 0, 0, left, 900)

	near := a.Near(center)
	assert.Len(t, near, 2)
}
