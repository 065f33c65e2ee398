// Package signal implements SignalManager: the final gate every detector
// candidate passes through before becoming a ConfirmedSignal.
package signal

import (
	"github.com/google/uuid"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/rollingwindow"
)

// DirectionMap documents the side a signal type resolves to once
// confirmed. Detectors already
// compute SignalCandidate.Side themselves (absorption and exhaustion can
// go either way depending on observed flow); this map only documents the
// canonical bias. Process does not consult it and never overrides the
// detector's own determination.
var DirectionMap = map[model.SignalType]model.Side{
	model.SignalAbsorption:   model.SideBuy,
	model.SignalExhaustion:   model.SideSell,
	model.SignalAccumulation: model.SideBuy,
	model.SignalDistribution: model.SideSell,
}

// Config is the immutable configuration for one SignalManager instance.
type Config struct {
	ConfidenceThreshold       float64
	CorrelationWindowMs       int64
	CorrelationPriceTolerance float64 // fraction, e.g. 0.001
	DedupToleranceFraction    float64
	TargetPct                 float64
	StopPct                   float64
}

type historyRecord struct {
	tsMs  int64
	typ   model.SignalType
	price int64
}

func (r historyRecord) TimestampMs() int64 { return r.tsMs }

type lastConfirmed struct {
	price int64
}

// DropReason identifies which gate rejected a SignalCandidate in Process,
// so the caller can record and log per-reason drop metrics.
type DropReason string

const (
	// DropNone means the candidate was confirmed, not dropped.
	DropNone DropReason = ""
	// DropBlockedByHealth means MarketHealth's recommendation vetoed the
	// candidate outright (pause, close-positions, or insufficient data).
	DropBlockedByHealth DropReason = "blocked_by_health"
	// DropLowConfidence means the candidate's own confidence fell below
	// ConfidenceThreshold.
	DropLowConfidence DropReason = "low_confidence"
	// DropDuplicate means the candidate was within dedup tolerance of the
	// last confirmed signal of the same type.
	DropDuplicate DropReason = "duplicate"
)

// Manager owns signal history and the per-type dedup map — the only
// state SignalManager mutates.
type Manager struct {
	cfg        Config
	history    *rollingwindow.Window[historyRecord]
	lastByType map[model.SignalType]lastConfirmed
}

// New constructs a SignalManager.
func New(cfg Config) *Manager {
	return &Manager{
		cfg:        cfg,
		history:    rollingwindow.New[historyRecord](1024),
		lastByType: make(map[model.SignalType]lastConfirmed),
	}
}

// Process runs one SignalCandidate through the full gate pipeline
// (health, confidence, correlation boost, dedup, TP/SL derivation) and
// returns a ConfirmedSignal, or nil with the DropReason identifying
// which gate rejected it.
func (m *Manager) Process(cand model.SignalCandidate, health model.MarketHealth) (*model.ConfirmedSignal, DropReason) {
	switch health.Recommendation {
	case model.RecommendPause, model.RecommendClosePositions, model.RecommendInsufficientData:
		return nil, DropBlockedByHealth
	}

	if cand.Confidence < m.cfg.ConfidenceThreshold {
		return nil, DropLowConfidence
	}

	count, strength := m.correlate(cand)
	finalConfidence := cand.Confidence * (1 + 0.15*strength)
	if finalConfidence > 1 {
		finalConfidence = 1
	}

	if m.isDuplicate(cand) {
		return nil, DropDuplicate
	}

	finalPrice := cand.Data.Price
	sideSign := 1.0
	if cand.Side == model.SideSell {
		sideSign = -1.0
	}
	tp := int64(float64(finalPrice) * (1 + sideSign*m.cfg.TargetPct))
	sl := int64(float64(finalPrice) * (1 - sideSign*m.cfg.StopPct))

	confirmed := &model.ConfirmedSignal{
		ID:              uuid.NewString(),
		Origin:          []model.SignalCandidate{cand},
		FinalConfidence: finalConfidence,
		FinalPrice:      finalPrice,
		TPPrice:         tp,
		SLPrice:         sl,
		Side:            cand.Side,
		ConfirmedAtMs:   cand.TsMs,
		Correlation:     model.Correlation{Count: count, Strength: strength},
		HealthContext:   health,
	}

	m.history.Add(historyRecord{tsMs: cand.TsMs, typ: cand.Type, price: cand.Data.Price})
	m.history.EvictOlderThan(cand.TsMs - m.cfg.CorrelationWindowMs)
	m.lastByType[cand.Type] = lastConfirmed{price: cand.Data.Price}

	return confirmed, DropNone
}

// correlate looks back correlation_window_ms for same-type candidates at
// a nearly identical price and returns the matching count and the
// correlation strength derived from it.
func (m *Manager) correlate(cand model.SignalCandidate) (int, float64) {
	cutoff := cand.TsMs - m.cfg.CorrelationWindowMs
	count := 0
	for _, r := range m.history.All() {
		if r.tsMs < cutoff || r.typ != cand.Type {
			continue
		}
		if cand.Data.Price == 0 {
			continue
		}
		delta := r.price - cand.Data.Price
		if delta < 0 {
			delta = -delta
		}
		if float64(delta)/float64(cand.Data.Price) <= m.cfg.CorrelationPriceTolerance {
			count++
		}
	}
	strength := float64(count) / 3.0
	if strength > 1 {
		strength = 1
	}
	return count, strength
}

// isDuplicate suppresses a candidate whose price is within dedup
// tolerance of the previous confirmed signal of the same type.
func (m *Manager) isDuplicate(cand model.SignalCandidate) bool {
	last, ok := m.lastByType[cand.Type]
	if !ok {
		return false
	}
	tolerance := float64(last.price) * m.cfg.DedupToleranceFraction
	delta := cand.Data.Price - last.price
	if delta < 0 {
		delta = -delta
	}
	return float64(delta) <= tolerance
}
