package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
)

func absorptionCfg() AbsorptionConfig {
	return AbsorptionConfig{
		TickSize:                     1,
		TimeWindowMs:                 60_000,
		MinVolumeForRatio:            50,
		MinAggVolume:                 100,
		MinPassiveMultiplier:         2.0,
		MaxAbsorptionRatio:           0.5,
		PriceEfficiencyThreshold:     0.1,
		SpreadImpactThresholdTicks:   100,
		InstitutionalVolumeThreshold: 1_000_000,
		InstitutionalVolumeBoost:     0.1,
		ConfluenceWeight:             0.2,
		AlignmentWeight:              0.1,
		CrossTimeframeBoost:          0.05,
	}
}

func absorptionTrade(price, qty, tsMs, aggrSell, passive int64) model.EnrichedTrade {
	zone := model.ZoneSnapshot{
		AggrSellVol:   aggrSell,
		AggressiveVol: aggrSell,
		PassiveBidVol: passive,
	}
	return model.EnrichedTrade{
		AggTrade: model.AggTrade{Price: price, Qty: qty, TsMs: tsMs},
		BestBid:  price,
		BestAsk:  price,
		ZoneData: model.StandardZoneData{
			Zones5T:  []model.ZoneSnapshot{zone},
			Zones10T: []model.ZoneSnapshot{zone},
			Zones20T: []model.ZoneSnapshot{zone},
		},
	}
}

func TestAbsorptionEmitsBuyWhenSellersAreAbsorbed(t *testing.T) {
	d := NewAbsorption("absorption", absorptionCfg(), NewBase("absorption", 0, 0, 1, 1.0), nil)

	d.OnEnrichedTrade(absorptionTrade(1000, 10, 1000, 150, 550))
	cand := d.OnEnrichedTrade(absorptionTrade(1000, 10, 2000, 150, 550))

	require.NotNil(t, cand)
	assert.Equal(t, model.SignalAbsorption, cand.Type)
	assert.Equal(t, model.SideBuy, cand.Side)
	assert.LessOrEqual(t, cand.Confidence, 1.0)
}

func TestAbsorptionNoEmissionBelowMinAggVolume(t *testing.T) {
	d := NewAbsorption("absorption", absorptionCfg(), NewBase("absorption", 0, 0, 1, 1.0), nil)

	cand := d.OnEnrichedTrade(absorptionTrade(1000, 1, 1000, 10, 40))
	assert.Nil(t, cand)
}

type alwaysSpoofed struct{}

func (alwaysSpoofed) IsSpoofed(int64) bool { return true }

func TestAbsorptionRejectsWhenSpoofed(t *testing.T) {
	d := NewAbsorption("absorption", absorptionCfg(), NewBase("absorption", 0, 0, 1, 1.0), alwaysSpoofed{})

	d.OnEnrichedTrade(absorptionTrade(1000, 10, 1000, 150, 550))
	cand := d.OnEnrichedTrade(absorptionTrade(1000, 10, 2000, 150, 550))

	assert.Nil(t, cand)
}
