package preprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/orderbook"
)

const tick = 100_000

func newReadyBook(t *testing.T) *orderbook.Book {
	t.Helper()
	b := orderbook.New("BTCUSDT", tick)
	require.NoError(t, b.Recover(model.DepthSnapshot{
		Bids: []model.DepthRow{{Price: 10_000 * tick, Qty: 5 * tick}},
		Asks: []model.DepthRow{{Price: 10_010 * tick, Qty: 4 * tick}},
	}, nil))
	return b
}

func testConfig() Config {
	return Config{
		TickSize:     tick,
		BandTicks:    10,
		Horizons:     [3]int64{5, 10, 20},
		TimeWindowMs: 60_000,
	}
}

func TestOnTradeAttachesBookContext(t *testing.T) {
	book := newReadyBook(t)
	p := New(testConfig(), book)

	enriched := p.OnTrade(model.AggTrade{
		Price: 10_000 * tick,
		Qty:   1 * tick,
		TsMs:  1000,
	})

	assert.Equal(t, int64(10_000*tick), enriched.BestBid)
	assert.Equal(t, int64(10_010*tick), enriched.BestAsk)
	assert.Equal(t, int64(5*tick), enriched.PassiveBidVolAtPrice)
	assert.Equal(t, int64(0), enriched.PassiveAskVolAtPrice)
}

func TestOnTradePopulatesAllThreeHorizons(t *testing.T) {
	book := newReadyBook(t)
	p := New(testConfig(), book)

	enriched := p.OnTrade(model.AggTrade{
		Price: 10_000 * tick,
		Qty:   1 * tick,
		TsMs:  1000,
	})

	assert.NotEmpty(t, enriched.ZoneData.Zones5T)
	assert.NotEmpty(t, enriched.ZoneData.Zones10T)
	assert.NotEmpty(t, enriched.ZoneData.Zones20T)
	assert.Equal(t, [3]int64{5, 10, 20}, enriched.ZoneData.Config.BaseTicks)
}

func TestOnTradeSideClassification(t *testing.T) {
	book := newReadyBook(t)
	p := New(testConfig(), book)

	sellAggressor := p.OnTrade(model.AggTrade{
		Price:        10_000 * tick,
		Qty:          1 * tick,
		TsMs:         1000,
		BuyerIsMaker: true,
	})
	assert.Equal(t, model.SideSell, sellAggressor.AggressiveSide())

	buyAggressor := p.OnTrade(model.AggTrade{
		Price:        10_000 * tick,
		Qty:          1 * tick,
		TsMs:         1001,
		BuyerIsMaker: false,
	})
	assert.Equal(t, model.SideBuy, buyAggressor.AggressiveSide())
}
