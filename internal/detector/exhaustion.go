package detector

import (
	"github.com/google/uuid"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
)

// ExhaustionConfig is the immutable configuration for one
// ExhaustionDetector instance.
type ExhaustionConfig struct {
	MinAggVolume       int64
	ExhaustionThreshold float64
}

// Exhaustion detects depletion of one passive side by aggressive flow —
// a reversal signal.
type Exhaustion struct {
	*Base
	cfg ExhaustionConfig
}

// NewExhaustion constructs an ExhaustionDetector.
func NewExhaustion(id string, cfg ExhaustionConfig, base *Base) *Exhaustion {
	return &Exhaustion{Base: base, cfg: cfg}
}

// OnEnrichedTrade is the hot-path entry point.
func (d *Exhaustion) OnEnrichedTrade(t model.EnrichedTrade) *model.SignalCandidate {
	return d.Guard(func() (*model.SignalCandidate, error) { return d.analyze(t) })
}

func (d *Exhaustion) analyze(t model.EnrichedTrade) (*model.SignalCandidate, error) {
	var passiveBid, passiveAsk, aggressive, aggrBuy, aggrSell int64
	for _, z := range t.ZoneData.Zones5T {
		passiveBid += z.PassiveBidVol
		passiveAsk += z.PassiveAskVol
		aggressive += z.AggressiveVol
		aggrBuy += z.AggrBuyVol
		aggrSell += z.AggrSellVol
	}

	if aggressive < d.cfg.MinAggVolume {
		return nil, nil
	}

	total := passiveBid + passiveAsk + aggressive
	if total == 0 {
		return nil, nil
	}
	exhaustionRatio := float64(aggressive) / float64(total)
	if exhaustionRatio < d.cfg.ExhaustionThreshold {
		return nil, nil
	}

	var side model.Side
	switch {
	case passiveBid > passiveAsk && aggrSell > aggrBuy:
		side = model.SideBuy
	case passiveAsk > passiveBid && aggrBuy > aggrSell:
		side = model.SideSell
	default:
		return nil, nil // neutral
	}

	return &model.SignalCandidate{
		ID:         uuid.NewString(),
		DetectorID: d.ID,
		Type:       model.SignalExhaustion,
		Side:       side,
		Confidence: exhaustionRatio,
		TsMs:       t.TsMs,
		Data: model.SignalCandidateData{
			Price:      t.Price,
			Aggressive: aggressive,
			Passive:    passiveBid + passiveAsk,
		},
	}, nil
}
