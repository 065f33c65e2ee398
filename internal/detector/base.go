// Package detector implements the shared DetectorBase lifecycle and the
// concrete pattern detectors built on top of it: Absorption, Exhaustion,
// Iceberg, Spoofing, and the supplemented Accumulation detector. Every
// detector's hot path is OnEnrichedTrade; nothing here blocks or
// allocates beyond the bounded rolling buffers each concrete detector
// owns.
package detector

import (
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
)

// Base carries the lifecycle every concrete detector shares: emission
// cooldown with confidence-override, error isolation/quarantine, and a
// cleanup hook. It is not safe for concurrent use — detector state is
// thread-local to the core loop.
type Base struct {
	ID                  string
	EventCooldownMs     int64
	MinInitialMoveTicks int64
	TickSize            int64
	ErrorRateThreshold  float64

	errorCount     int64
	processedCount int64
	quarantined    bool

	hasEmitted         bool
	lastEmitPrice      int64
	lastEmitConfidence float64
	lastEmitTsMs       int64
}

// NewBase constructs a Base with the given per-detector parameters.
func NewBase(id string, eventCooldownMs, minInitialMoveTicks, tickSize int64, errorRateThreshold float64) *Base {
	return &Base{
		ID:                  id,
		EventCooldownMs:     eventCooldownMs,
		MinInitialMoveTicks: minInitialMoveTicks,
		TickSize:            tickSize,
		ErrorRateThreshold:  errorRateThreshold,
	}
}

// Quarantined reports whether the detector has exceeded its error rate
// threshold and stopped analyzing trades.
func (b *Base) Quarantined() bool { return b.quarantined }

// ErrorCount returns the cumulative analysis-error count.
func (b *Base) ErrorCount() int64 { return b.errorCount }

// Cleanup is the default periodic-sweep hook; it is a no-op for
// detectors that keep no rolling state of their own.
func (b *Base) Cleanup(nowMs int64) {}

// Guard runs analyze under panic recovery and error isolation, applies
// the cooldown gate to whatever candidate it returns, and records the
// emission if the gate passes. A quarantined detector short-circuits to
// nil without calling analyze.
func (b *Base) Guard(analyze func() (*model.SignalCandidate, error)) (result *model.SignalCandidate) {
	b.processedCount++
	if b.quarantined {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			b.errorCount++
			b.checkQuarantine()
			result = nil
		}
	}()

	cand, err := analyze()
	if err != nil {
		b.errorCount++
		b.checkQuarantine()
		return nil
	}
	if cand == nil {
		return nil
	}
	if !b.allowEmission(cand) {
		return nil
	}
	b.recordEmission(cand)
	return cand
}

func (b *Base) checkQuarantine() {
	if b.ErrorRateThreshold <= 0 || b.processedCount == 0 {
		return
	}
	if float64(b.errorCount)/float64(b.processedCount) > b.ErrorRateThreshold {
		b.quarantined = true
	}
}

// allowEmission implements the cooldown-with-override gate: suppress
// emissions at or near the same price within event_cooldown_ms unless the
// new candidate has strictly higher confidence AND is outside the
// min_initial_move_ticks radius.
func (b *Base) allowEmission(cand *model.SignalCandidate) bool {
	if !b.hasEmitted {
		return true
	}
	sincePrior := cand.TsMs - b.lastEmitTsMs
	if sincePrior >= b.EventCooldownMs {
		return true
	}
	distance := cand.Data.Price - b.lastEmitPrice
	if distance < 0 {
		distance = -distance
	}
	outsideRadius := distance > b.MinInitialMoveTicks*b.TickSize
	return outsideRadius && cand.Confidence > b.lastEmitConfidence
}

func (b *Base) recordEmission(cand *model.SignalCandidate) {
	b.hasEmitted = true
	b.lastEmitPrice = cand.Data.Price
	b.lastEmitConfidence = cand.Confidence
	b.lastEmitTsMs = cand.TsMs
}
