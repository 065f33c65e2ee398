package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
)

func testConfig() Config {
	return Config{
		SampleCapacity:                2048,
		TimeWindowMs:                  300_000,
		NormalSpreadBps:                5,
		VolumeImbalanceThreshold:      0.6,
		FlowImbalanceThreshold:        0.6,
		FlowImbalanceWindowMs:         30_000,
		ApiGapMs:                      5_000,
		WhalePercentile:               0.99,
		WhaleClusterWindowMs:          60_000,
		WhaleClusterMinCount:          3,
		BaselineReturnStdDevBps:       10,
		VolatilityBaselineMultiplier:  2.5,
		AnomalyCooldownMs:             60_000,
		HealthySpreadBps:              50,
		HealthyVolatilityThresholdBps: 100,
		HealthLookbackMs:              300_000,
	}
}

func baseTrade(price, ts int64) model.EnrichedTrade {
	return model.EnrichedTrade{
		AggTrade: model.AggTrade{Price: price, Qty: 10, TsMs: ts},
		BestBid:  price - 1,
		BestAsk:  price + 1,
	}
}

func TestFlashCrashDetectedOnLargeDeviation(t *testing.T) {
	d := New(testConfig())
	noise := []int64{998, 1000, 1002, 999, 1001}
	for i := 0; i < 15; i++ {
		d.OnTrade(baseTrade(noise[i%len(noise)], int64(i*1000)))
	}
	events := d.OnTrade(baseTrade(50, 16000)) // massive drop
	found := false
	for _, e := range events {
		if e.Type == model.AnomalyFlashCrash {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAPIGapDetectedOnTimeJump(t *testing.T) {
	d := New(testConfig())
	d.OnTrade(baseTrade(1000, 1000))
	events := d.OnTrade(baseTrade(1000, 20000)) // 19s gap
	require.NotEmpty(t, events)
	assert.Equal(t, model.AnomalyFeedGap, events[0].Type)
}

func TestAnomalyCooldownSuppressesRepeat(t *testing.T) {
	d := New(testConfig())
	d.OnTrade(baseTrade(1000, 1000))
	first := d.OnTrade(baseTrade(1000, 20000))
	require.NotEmpty(t, first)

	second := d.OnTrade(baseTrade(1000, 21000)) // immediate repeat, tiny gap won't itself trigger
	for _, e := range second {
		assert.NotEqual(t, model.AnomalyFeedGap, e.Type)
	}
}

func TestMarketHealthHealthyWithNoAnomalies(t *testing.T) {
	d := New(testConfig())
	health := d.MarketHealth(1000, 5, 10)
	assert.True(t, health.IsHealthy)
	assert.Equal(t, model.RecommendContinue, health.Recommendation)
}

func TestMarketHealthUnhealthyAfterFeedGap(t *testing.T) {
	d := New(testConfig())
	d.OnTrade(baseTrade(1000, 1000))
	d.OnTrade(baseTrade(1000, 20000))

	health := d.MarketHealth(25000, 5, 10)
	assert.False(t, health.IsHealthy)
	assert.Equal(t, model.RecommendInsufficientData, health.Recommendation)
}
